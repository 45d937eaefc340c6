package pipeline

import (
	"context"

	"github.com/gilchrisn/publication-classification/pkg/dbio"
	"github.com/gilchrisn/publication-classification/pkg/fileio"
	"github.com/gilchrisn/publication-classification/pkg/network"
)

// Source provides the citation network to classify
type Source interface {
	Name() string
	ReadNetwork(ctx context.Context) (*network.Network, error)
}

// Sink stores a classification. clusters[l][i] is the cluster of
// publication pubs[i] at level l.
type Sink interface {
	Name() string
	WriteClassification(ctx context.Context, pubs []int, clusters [][]int, levelNames []string) error
}

// FileSource reads a network from a publications file and a citation links file
type FileSource struct {
	PubFile     string
	CitLinkFile string
}

func (s FileSource) Name() string { return "file" }

func (s FileSource) ReadNetwork(ctx context.Context) (*network.Network, error) {
	return fileio.ReadNetwork(s.PubFile, s.CitLinkFile)
}

// FileSink writes a classification to a tab-separated file
type FileSink struct {
	Path string
}

func (s FileSink) Name() string { return "file" }

func (s FileSink) WriteClassification(ctx context.Context, pubs []int, clusters [][]int, levelNames []string) error {
	return fileio.WriteClassification(s.Path, pubs, clusters)
}

// DatabaseSource reads a network from a publications table and a citation
// links table
type DatabaseSource struct {
	DB           *dbio.DB
	PubTable     string
	CitLinkTable string
}

func (s DatabaseSource) Name() string { return "database" }

func (s DatabaseSource) ReadNetwork(ctx context.Context) (*network.Network, error) {
	return s.DB.ReadNetwork(ctx, s.PubTable, s.CitLinkTable)
}

// DatabaseSink writes a classification to a database table
type DatabaseSink struct {
	DB    *dbio.DB
	Table string
}

func (s DatabaseSink) Name() string { return "database" }

func (s DatabaseSink) WriteClassification(ctx context.Context, pubs []int, clusters [][]int, levelNames []string) error {
	return s.DB.WriteClassification(ctx, s.Table, pubs, clusters, levelNames)
}

// NetworkSource provides a network already held in memory
type NetworkSource struct {
	Network *network.Network
}

func (s NetworkSource) Name() string { return "memory" }

func (s NetworkSource) ReadNetwork(ctx context.Context) (*network.Network, error) {
	return s.Network, nil
}
