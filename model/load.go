package model

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/syssam/celer"
)

type fileDoc struct {
	Entities []entityDoc `yaml:"entities"`
}

type entityDoc struct {
	Name          string        `yaml:"name"`
	Table         string        `yaml:"table,omitempty"`
	PrimaryKey    []string      `yaml:"primaryKey,omitempty"`
	Attributes    []attrDoc     `yaml:"attributes"`
	Relationships []relationDoc `yaml:"relationships,omitempty"`
}

type attrDoc struct {
	Name     string `yaml:"name"`
	Column   string `yaml:"column,omitempty"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable,omitempty"`
}

type relationDoc struct {
	Name        string    `yaml:"name"`
	ToMany      bool      `yaml:"toMany,omitempty"`
	Destination string    `yaml:"destination"`
	Joins       []joinDoc `yaml:"joins"`
}

type joinDoc struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}

// Load reads entity definitions in YAML form and builds a resolved
// model. The document is a mapping with a single `entities` list; see
// the package tests for the format.
func Load(r io.Reader) (*Model, error) {
	entities, err := decode(r)
	if err != nil {
		return nil, err
	}
	return New(entities...)
}

// LoadFile loads a model from a single YAML file.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("model: %s: %w", path, err)
	}
	return m, nil
}

// LoadDir loads every .yaml/.yml file in dir, in parallel, and merges
// the entities into one model. Relationships may reference entities
// defined in a different file; resolution runs once over the merged
// set. File order does not matter, but entity names must be unique
// across the directory.
func LoadDir(ctx context.Context, dir string) (*Model, error) {
	names, err := filepath.Glob(filepath.Join(dir, "*.y*ml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	var (
		mu   sync.Mutex
		docs = make(map[string][]*Entity, len(names))
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for _, name := range names {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			f, err := os.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()
			entities, err := decode(f)
			if err != nil {
				return fmt.Errorf("model: %s: %w", name, err)
			}
			mu.Lock()
			docs[name] = entities
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	var entities []*Entity
	for _, name := range names {
		entities = append(entities, docs[name]...)
	}
	return New(entities...)
}

func decode(r io.Reader) ([]*Entity, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	entities := make([]*Entity, 0, len(doc.Entities))
	for _, ed := range doc.Entities {
		e := &Entity{
			Name:       ed.Name,
			Table:      ed.Table,
			PrimaryKey: ed.PrimaryKey,
		}
		for _, ad := range ed.Attributes {
			kind, ok := celer.KindOf(ad.Type)
			if !ok {
				return nil, fmt.Errorf("model: entity %q attribute %q has unknown type %q", ed.Name, ad.Name, ad.Type)
			}
			e.Attributes = append(e.Attributes, &Attribute{
				Name:     ad.Name,
				Column:   ad.Column,
				Type:     kind,
				Nullable: ad.Nullable,
			})
		}
		for _, rd := range ed.Relationships {
			r := &Relationship{
				Name:        rd.Name,
				ToMany:      rd.ToMany,
				Destination: rd.Destination,
			}
			for _, jd := range rd.Joins {
				r.Joins = append(r.Joins, Join{Source: jd.Source, Dest: jd.Dest})
			}
			e.Relationships = append(e.Relationships, r)
		}
		entities = append(entities, e)
	}
	return entities, nil
}
