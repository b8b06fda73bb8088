// Package contenttest provides an in-memory content source for tests.
package contenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dennwc/assetcache/content"
)

var _ content.Source = (*Source)(nil)

// Source is an in-memory content.Source that counts calls.
// Blocks and pages can be replaced at any time; Fetch calls observe the latest version.
type Source struct {
	mu     sync.Mutex
	pages  []*content.Page
	trees  map[string][]*content.Block
	blocks map[string]*content.Block
	byID   map[string]*content.Page

	treeErr  map[string]error
	pagesErr error

	calls map[string]int
}

func New() *Source {
	return &Source{
		trees:   make(map[string][]*content.Block),
		blocks:  make(map[string]*content.Block),
		byID:    make(map[string]*content.Page),
		treeErr: make(map[string]error),
		calls:   make(map[string]int),
	}
}

// AddPage adds a page with a given block tree.
func (s *Source) AddPage(p *content.Page, blocks ...*content.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, p)
	s.byID[p.ID] = p
	s.trees[p.ID] = blocks
	s.indexBlocks(blocks)
}

func (s *Source) indexBlocks(blocks []*content.Block) {
	for _, b := range blocks {
		s.blocks[b.ID] = b
		s.indexBlocks(b.Children)
	}
}

// SetBlock replaces the version of the block returned by Block.
// The block tree returned by BlockTree is not affected.
func (s *Source) SetBlock(b *content.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.ID] = b
}

// DeleteBlock makes Block return content.ErrNotFound for the id.
func (s *Source) DeleteBlock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, id)
}

// SetPage replaces the version of the page returned by Page.
func (s *Source) SetPage(p *content.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.ID] = p
}

// FailTree makes BlockTree fail for the page.
func (s *Source) FailTree(pageID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treeErr[pageID] = err
}

// FailPages makes Pages fail.
func (s *Source) FailPages(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagesErr = err
}

// Calls returns the number of calls of a method for a given id.
// Use an empty id for Pages.
func (s *Source) Calls(method, id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+":"+id]
}

func (s *Source) count(method, id string) {
	s.calls[method+":"+id]++
}

func (s *Source) Pages(ctx context.Context) ([]*content.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Pages", "")
	if s.pagesErr != nil {
		return nil, s.pagesErr
	}
	return append([]*content.Page(nil), s.pages...), nil
}

func (s *Source) BlockTree(ctx context.Context, pageID string) ([]*content.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("BlockTree", pageID)
	if err := s.treeErr[pageID]; err != nil {
		return nil, err
	}
	tree, ok := s.trees[pageID]
	if !ok {
		return nil, fmt.Errorf("page %q: %w", pageID, content.ErrNotFound)
	}
	return tree, nil
}

func (s *Source) Block(ctx context.Context, id string) (*content.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Block", id)
	b, ok := s.blocks[id]
	if !ok {
		return nil, fmt.Errorf("block %q: %w", id, content.ErrNotFound)
	}
	return b, nil
}

func (s *Source) Page(ctx context.Context, id string) (*content.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Page", id)
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("page %q: %w", id, content.ErrNotFound)
	}
	return p, nil
}
