package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ledgerbot/backupd/storage"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Catalog is a read-through view over backend listings joined with the
// artifact index. Reads never block a running backup or restore; they see a
// possibly stale snapshot until the run publishes.
type Catalog struct {
	mu      sync.RWMutex
	records []Record

	dbMu   sync.Mutex
	db     *gorm.DB
	local  storage.Backend
	remote storage.Backend
	logger zerolog.Logger
}

type Params struct {
	DB     *gorm.DB
	Local  storage.Backend
	Remote storage.Backend
	Logger zerolog.Logger
}

func New(params Params) *Catalog {
	return &Catalog{
		db:     params.DB,
		local:  params.Local,
		remote: params.Remote,
		logger: params.Logger,
	}
}

// Refresh rebuilds the cached record set from backend listings. A local
// listing failure is fatal; a remote listing failure only degrades the
// remote-presence flags.
func (c *Catalog) Refresh(ctx context.Context) error {
	localObjects, err := c.local.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list local backups: %w", err)
	}

	merged := make(map[string]*Record)
	for _, obj := range localObjects {
		merged[obj.Name] = &Record{
			ID:        idFromName(obj.Name),
			Name:      obj.Name,
			CreatedAt: obj.CreatedAt,
			Size:      obj.Size,
			Local:     true,
		}
	}

	if c.remote != nil {
		remoteObjects, err := c.remote.List(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("could not list remote backups")
		} else {
			for _, obj := range remoteObjects {
				if rec, ok := merged[obj.Name]; ok {
					rec.Remote = true
					continue
				}
				merged[obj.Name] = &Record{
					ID:        idFromName(obj.Name),
					Name:      obj.Name,
					CreatedAt: obj.CreatedAt,
					Size:      obj.Size,
					Remote:    true,
				}
			}
		}
	}

	if err := c.joinChecksums(ctx, merged); err != nil {
		c.logger.Warn().Err(err).Msg("could not read artifact index")
	}

	records := make([]Record, 0, len(merged))
	for _, rec := range merged {
		records = append(records, *rec)
	}
	sortRecords(records)

	c.mu.Lock()
	c.records = records
	c.mu.Unlock()

	return nil
}

func (c *Catalog) joinChecksums(ctx context.Context, merged map[string]*Record) error {
	if c.db == nil {
		return nil
	}

	c.dbMu.Lock()
	defer c.dbMu.Unlock()

	var rows []Artifact
	if err := c.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		if rec, ok := merged[row.Name]; ok {
			rec.Checksum = row.Checksum
		}
	}
	return nil
}

// Publish records a newly written artifact. The caller must have durably
// written the artifact before publishing.
func (c *Catalog) Publish(ctx context.Context, rec Record) error {
	if c.db != nil {
		c.dbMu.Lock()
		err := c.db.WithContext(ctx).Save(&Artifact{
			Name:      rec.Name,
			Checksum:  rec.Checksum,
			Size:      rec.Size,
			CreatedAt: rec.CreatedAt,
		}).Error
		c.dbMu.Unlock()
		if err != nil {
			return fmt.Errorf("could not index artifact %q: %w", rec.Name, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].Name == rec.Name {
			c.records[i] = rec
			return nil
		}
	}
	c.records = append(c.records, rec)
	sortRecords(c.records)
	return nil
}

// Forget drops a pruned artifact from the cache and the index.
func (c *Catalog) Forget(ctx context.Context, name string) {
	if c.db != nil {
		c.dbMu.Lock()
		if err := c.db.WithContext(ctx).Delete(&Artifact{Name: name}).Error; err != nil {
			c.logger.Warn().Err(err).Str("name", name).Msg("could not remove artifact from index")
		}
		c.dbMu.Unlock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].Name == name {
			c.records = append(c.records[:i], c.records[i+1:]...)
			return
		}
	}
}

// MarkReplicated flags an existing record as present on the remote backend.
func (c *Catalog) MarkReplicated(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].Name == name {
			c.records[i].Remote = true
			return
		}
	}
}

// Records returns all known records ordered oldest first.
func (c *Catalog) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Latest returns the most recent record.
func (c *Catalog) Latest() (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.records) == 0 {
		return Record{}, false
	}
	return c.records[len(c.records)-1], true
}

// Find returns the record with the given id.
func (c *Catalog) Find(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rec := range c.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

func idFromName(name string) string {
	at, err := storage.ParseArtifactName(name)
	if err != nil {
		return name
	}
	return at.Format("20060102150405")
}
