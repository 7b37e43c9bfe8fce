// Package notes reads vocabulary from a folder of plain-text note files, one
// "term: meaning" pair per line. Each file is a batch; the newest file is the
// most recent batch.
package notes

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vocab-quiz-service/internal/domain"
)

const (
	fileExt   = ".txt"
	separator = ": "
)

// Source is a VocabularySource over a notes directory.
type Source struct {
	dir string
}

func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Batch is one note file and its words.
type Batch struct {
	Name      string
	CreatedAt time.Time
	Words     []domain.WordPair
}

func (s *Source) AllWords(ctx context.Context) ([]domain.WordPair, error) {
	batches, err := s.Batches(ctx)
	if err != nil {
		return nil, err
	}
	var all []domain.WordPair
	for _, b := range batches {
		all = append(all, b.Words...)
	}
	return all, nil
}

// MostRecentBatch returns the words of the newest note file, or nothing when
// the folder has no notes.
func (s *Source) MostRecentBatch(ctx context.Context) ([]domain.WordPair, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	latest := files[len(files)-1]
	return readFile(filepath.Join(s.dir, latest.Name()))
}

// Batches reads every note file, oldest first.
func (s *Source) Batches(ctx context.Context) ([]Batch, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	batches := make([]Batch, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		words, err := readFile(filepath.Join(s.dir, f.Name()))
		if err != nil {
			return nil, err
		}
		batches = append(batches, Batch{Name: f.Name(), CreatedAt: f.ModTime(), Words: words})
	}
	return batches, nil
}

// files lists note files ordered by modification time, then name.
func (s *Source) files() ([]os.FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read notes dir: %w", err)
	}
	var files []os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat note %s: %w", e.Name(), err)
		}
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime().Equal(files[j].ModTime()) {
			return files[i].ModTime().Before(files[j].ModTime())
		}
		return files[i].Name() < files[j].Name()
	})
	return files, nil
}

func readFile(path string) ([]domain.WordPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open note: %w", err)
	}
	defer f.Close()

	words, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read note %s: %w", filepath.Base(path), err)
	}
	return words, nil
}

// Parse reads "term: meaning" lines. Lines without the separator are skipped.
func Parse(r io.Reader) ([]domain.WordPair, error) {
	var words []domain.WordPair
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		term, meaning, ok := strings.Cut(line, separator)
		if !ok {
			continue
		}
		term, meaning = strings.TrimSpace(term), strings.TrimSpace(meaning)
		if term == "" || meaning == "" {
			continue
		}
		words = append(words, domain.WordPair{Term: term, Meaning: meaning})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
