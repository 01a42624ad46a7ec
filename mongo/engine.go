// Package mongo backs grafo's execution audit trail with MongoDB.
package mongo

import (
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/grafo"
	"github.com/petrijr/grafo/internal/engine"
	"github.com/petrijr/grafo/pkg/api"

	mpersist "github.com/petrijr/grafo/mongo/internal/persistence"
)

// NewMongoEngine returns an Engine whose execution logs land in MongoDB,
// using the store's default database and collection names
// ("grafo"/"execution_logs").
func NewMongoEngine(client *mongo.Client) api.Engine {
	return NewMongoEngineWithObserver(client, nil)
}

// NewMongoEngineWithObserver returns a Mongo-backed Engine with the given
// Observer.
func NewMongoEngineWithObserver(client *mongo.Client, obs api.Observer) api.Engine {
	return engine.NewEngineWithConfig(engine.Config{
		Sink:     mpersist.NewMongoSink(client, "", ""),
		Observer: obs,
	})
}

// NewMongoSink returns a readable log store over MongoDB, for composing with
// grafo.NewEngineWithOptions or grafo.AuditBundle. Empty dbName and collName
// fall back to "grafo" and "execution_logs".
func NewMongoSink(client *mongo.Client, dbName, collName string) grafo.LogStore {
	return mpersist.NewMongoSink(client, dbName, collName)
}
