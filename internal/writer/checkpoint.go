package writer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bookpress/internal/book"
	"bookpress/internal/types"
)

// Article is one rewritten section. The embedded fields use the sections
// JSON keys, so a checkpoint file is itself valid input for a build.
type Article struct {
	book.Section
	SourceHash string `json:"source_hash,omitempty"`
}

// Metadata heads a checkpoint file.
type Metadata struct {
	GeneratedAt string `json:"generated_at"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
}

type checkpointFile struct {
	Metadata Metadata  `json:"metadata"`
	Articles []Article `json:"articles"`
}

// Checkpoint is the writer's output file, rewritten after every article.
// Articles are keyed by a hash of their source so finished sections are not
// sent again when a run is resumed.
type Checkpoint struct {
	path string
	data checkpointFile
	done map[string]int // source hash -> index in data.Articles
	mu   sync.RWMutex
}

// NewCheckpoint creates an empty checkpoint at path. An empty path keeps
// everything in memory.
func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{
		path: path,
		done: make(map[string]int),
	}
}

// SourceHash identifies a section by chapter, section number and text.
func SourceHash(s book.Section) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode([]string{string(s.ChapterID), string(s.SectionNumber), s.Text})
	return hex.EncodeToString(h.Sum(nil))
}

// Load reads an existing checkpoint. A missing file is not an error.
func (c *Checkpoint) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to read checkpoint", c.path, err)
	}

	var file checkpointFile
	if err := json.Unmarshal(data, &file); err != nil {
		return types.NewAppErrorWithDetails(types.ErrConfigParse, "failed to parse checkpoint", c.path, err)
	}
	c.data = file
	c.done = make(map[string]int, len(file.Articles))
	for i, a := range file.Articles {
		if a.SourceHash != "" {
			c.done[a.SourceHash] = i
		}
	}
	return nil
}

// Get returns the finished article for a source hash.
func (c *Checkpoint) Get(hash string) (Article, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.done[hash]
	if !ok {
		return Article{}, false
	}
	return c.data.Articles[i], true
}

// Add records an article, replacing one with the same source hash.
func (c *Checkpoint) Add(a Article) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.done[a.SourceHash]; ok && a.SourceHash != "" {
		c.data.Articles[i] = a
		return
	}
	c.data.Articles = append(c.data.Articles, a)
	if a.SourceHash != "" {
		c.done[a.SourceHash] = len(c.data.Articles) - 1
	}
}

// SetMetadata stamps the file with the provider and the current time.
func (c *Checkpoint) SetMetadata(provider, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Metadata = Metadata{
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Provider:    provider,
		Model:       model,
	}
}

// Save writes the checkpoint to its path.
func (c *Checkpoint) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		return nil
	}
	file := c.data
	if file.Articles == nil {
		file.Articles = []Article{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to marshal checkpoint", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrFileNotFound, "failed to create checkpoint directory", err)
		}
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrFileNotFound, "failed to write checkpoint", c.path, err)
	}
	return nil
}

// Size returns the number of articles.
func (c *Checkpoint) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data.Articles)
}

// Path returns the checkpoint file path.
func (c *Checkpoint) Path() string {
	return c.path
}
