package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gocv.io/x/gocv"

	"imagedupes/logging"
	"imagedupes/types"
)

// InitDatabase initializes and returns a database connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; extraction workers share this connection
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS descriptors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		modified_at TEXT,
		size INTEGER,
		keypoint_count INTEGER,
		descriptor_cols INTEGER,
		keypoints TEXT,
		features BLOB,
		created_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_path ON descriptors(path);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, err
	}

	// Check if extractor column exists, add it if it doesn't
	var hasExtractorColumn bool
	err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('descriptors') WHERE name='extractor'").Scan(&hasExtractorColumn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error checking for extractor column: %w", err)
	}

	if !hasExtractorColumn {
		if _, err = db.Exec("ALTER TABLE descriptors ADD COLUMN extractor TEXT;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("error adding extractor column: %w", err)
		}
		logging.DebugLog("Added 'extractor' column to descriptor cache schema")
	}

	return db, nil
}

// FileStamp identifies one version of a file on disk
type FileStamp struct {
	ModifiedAt string
	Size       int64
}

// StampFile returns the stamp of the file at path
func StampFile(path string) (FileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileStamp{}, fmt.Errorf("cannot stat file %s: %w", path, err)
	}
	return FileStamp{
		ModifiedAt: info.ModTime().UTC().Format(time.RFC3339Nano),
		Size:       info.Size(),
	}, nil
}

// LoadDescriptors returns the cached descriptor set of path when it was stored
// for the same file stamp and extractor
func LoadDescriptors(db *sql.DB, path string, stamp FileStamp, extractor string) (*types.DescriptorSet, bool, error) {
	var (
		modifiedAt    string
		size          int64
		keypointCount int
		cols          int
		keypointsJSON string
		features      []byte
		storedBy      sql.NullString
	)
	err := db.QueryRow(`SELECT modified_at, size, keypoint_count, descriptor_cols, keypoints, features, extractor
		FROM descriptors WHERE path = ?`, path).
		Scan(&modifiedAt, &size, &keypointCount, &cols, &keypointsJSON, &features, &storedBy)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("database error for %s: %w", path, err)
	}

	if modifiedAt != stamp.ModifiedAt || size != stamp.Size || storedBy.String != extractor {
		logging.DebugLog("Cached descriptors for %s are stale", path)
		return nil, false, nil
	}

	var keypoints []gocv.KeyPoint
	if err := json.Unmarshal([]byte(keypointsJSON), &keypoints); err != nil {
		return nil, false, fmt.Errorf("cannot decode cached keypoints for %s: %w", path, err)
	}
	if len(keypoints) != keypointCount {
		return nil, false, fmt.Errorf("cached keypoints for %s are inconsistent", path)
	}

	if keypointCount == 0 {
		return &types.DescriptorSet{Descriptors: gocv.NewMat()}, true, nil
	}

	descriptors, err := matFromFloat32Bytes(keypointCount, cols, features)
	if err != nil {
		return nil, false, fmt.Errorf("cannot decode cached descriptors for %s: %w", path, err)
	}
	return &types.DescriptorSet{Keypoints: keypoints, Descriptors: descriptors}, true, nil
}

// StoreDescriptors stores or replaces the descriptor set of path
func StoreDescriptors(db *sql.DB, path string, stamp FileStamp, extractor string, set *types.DescriptorSet) error {
	keypoints := set.Keypoints
	if keypoints == nil {
		keypoints = []gocv.KeyPoint{}
	}
	keypointsJSON, err := json.Marshal(keypoints)
	if err != nil {
		return fmt.Errorf("cannot encode keypoints for %s: %w", path, err)
	}

	var (
		features []byte
		cols     int
	)
	if !set.Empty() {
		if set.Descriptors.Type() != gocv.MatTypeCV32F {
			return fmt.Errorf("unsupported descriptor type for %s: %v", path, set.Descriptors.Type())
		}
		cols = set.Descriptors.Cols()
		features = set.Descriptors.ToBytes()
	}

	stmt, err := db.Prepare(`
		INSERT OR REPLACE INTO descriptors (
			path, modified_at, size, keypoint_count, descriptor_cols, keypoints, features, extractor, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement for %s: %w", path, err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		path,
		stamp.ModifiedAt,
		stamp.Size,
		len(keypoints),
		cols,
		string(keypointsJSON),
		features,
		extractor,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cannot insert descriptors for %s: %w", path, err)
	}
	return nil
}

// matFromFloat32Bytes copies raw CV_32F data into a Mat that owns its memory
func matFromFloat32Bytes(rows, cols int, data []byte) (gocv.Mat, error) {
	if rows <= 0 || cols <= 0 || len(data) != rows*cols*4 {
		return gocv.NewMat(), fmt.Errorf("expected %dx%d float32 values, got %d bytes", rows, cols, len(data))
	}
	view, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV32F, data)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer view.Close()

	owned := view.Clone()
	runtime.KeepAlive(data)
	return owned, nil
}

// CacheStats contains statistics about the descriptor cache
type CacheStats struct {
	Entries   int
	Keypoints int
}

// GetCacheStats retrieves statistics about cached descriptor sets
func GetCacheStats(db *sql.DB) (*CacheStats, error) {
	var stats CacheStats
	err := db.QueryRow("SELECT COUNT(*), COALESCE(SUM(keypoint_count), 0) FROM descriptors").
		Scan(&stats.Entries, &stats.Keypoints)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", err)
	}
	return &stats, nil
}

// Cache adapts a descriptor database to imageprocessor.DescriptorCache
type Cache struct {
	db        *sql.DB
	extractor string
}

// OpenCache opens (creating if needed) the descriptor cache at dbPath
func OpenCache(dbPath, extractor string) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create cache directory %s: %w", dir, err)
		}
	}
	db, err := InitDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open descriptor cache %s: %w", dbPath, err)
	}
	return &Cache{db: db, extractor: extractor}, nil
}

// Load returns the cached descriptor set of the file at path if it is current
func (c *Cache) Load(path string) (*types.DescriptorSet, bool, error) {
	stamp, err := StampFile(path)
	if err != nil {
		return nil, false, err
	}
	return LoadDescriptors(c.db, path, stamp, c.extractor)
}

// Store saves the descriptor set of the file at path
func (c *Cache) Store(path string, set *types.DescriptorSet) error {
	stamp, err := StampFile(path)
	if err != nil {
		return err
	}
	return StoreDescriptors(c.db, path, stamp, c.extractor, set)
}

// Stats returns the cache statistics
func (c *Cache) Stats() (*CacheStats, error) {
	return GetCacheStats(c.db)
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}
