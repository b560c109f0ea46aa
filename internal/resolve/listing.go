package resolve

import (
	"fmt"
	"os"
	"sort"
	"time"
)

const modifiedLayout = "2006-01-02 15:04:05"

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// Entry describes one file of the public root.
type Entry struct {
	Name     string `json:"file-name"`
	Size     string `json:"size"`
	Modified string `json:"modified"`
}

// List returns the regular files directly inside the public root, sorted
// by name. Subdirectories and other non-regular entries are skipped.
func (r *Resolver) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(r.public)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.public, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, Entry{
			Name:     info.Name(),
			Size:     FormatSize(info.Size()),
			Modified: FormatModified(info.ModTime()),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// FormatSize renders n with a 1024-based unit and one decimal place.
// Zero is "0 B".
func FormatSize(n int64) string {
	if n == 0 {
		return "0 B"
	}

	size := float64(n)
	i := 0
	for size >= 1024 && i < len(sizeUnits)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[i])
}

func FormatModified(t time.Time) string {
	return t.Local().Format(modifiedLayout)
}
