package redis

import (
	"github.com/redis/go-redis/v9"

	"github.com/petrijr/grafo"
	"github.com/petrijr/grafo/internal/engine"
	"github.com/petrijr/grafo/pkg/api"

	rpersist "github.com/petrijr/grafo/redis/internal/persistence"
)

// NewRedisEngine returns an Engine whose execution logs land in Redis.
func NewRedisEngine(client *redis.Client) api.Engine {
	return NewRedisEngineWithObserver(client, nil)
}

// NewRedisEngineWithObserver returns a Redis-backed Engine with the given Observer.
func NewRedisEngineWithObserver(client *redis.Client, obs api.Observer) api.Engine {
	return engine.NewEngineWithConfig(engine.Config{
		Sink:     rpersist.NewRedisSink(client, "grafo:"),
		Observer: obs,
	})
}

// NewRedisSink returns a readable log store over Redis, for composing with
// grafo.NewEngineWithOptions or grafo.AuditBundle.
func NewRedisSink(client *redis.Client, prefix string) grafo.LogStore {
	return rpersist.NewRedisSink(client, prefix)
}
