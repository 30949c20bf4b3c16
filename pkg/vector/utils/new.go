// Package vectorutils is the vector store utility package
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/thinkstream/pkg/vector"
	"github.com/papercomputeco/thinkstream/pkg/vector/inmemory"
	"github.com/papercomputeco/thinkstream/pkg/vector/qdrant"
)

type NewVectorDriverOpts struct {
	ProviderType   string
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	CollectionName string
	Logger         *slog.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "", "inmemory":
		return inmemory.NewDriver(), nil
	case "qdrant":
		return qdrant.NewDriver(qdrant.Config{
			Host:           o.Host,
			Port:           o.Port,
			APIKey:         o.APIKey,
			UseTLS:         o.UseTLS,
			CollectionName: o.CollectionName,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
