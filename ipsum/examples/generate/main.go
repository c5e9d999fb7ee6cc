package main

import (
	"context"
	"fmt"
	"os"

	"gorm.io/driver/sqlite"

	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

func main() {
	ctx := context.Background()

	// GORM store; DSN points at a database seeded with `spicyipsum seed`.
	dsn := os.Getenv("SPICYIPSUM_DSN")
	if dsn == "" {
		dsn = "spicyipsum.sqlite3"
	}
	store, err := ipsum.NewGormCorpusStore(sqlite.Open(dsn))
	if err != nil {
		panic(err)
	}

	// One cache serves both the limiter and the corpus lookups.
	cache := ipsum.NewTTLCache[any]()
	limiter := ipsum.NewRateLimiter(cache, ipsum.DefaultLimiterConfig())
	gen := ipsum.NewGenerator(ipsum.NewCorpusCache(cache, store))

	for i := range 9 {
		d, err := limiter.Admit("127.0.0.1")
		if err != nil {
			panic(err)
		}
		if d != ipsum.Admit {
			fmt.Printf("request %d: %s\n", i+1, d)
			continue
		}
		paragraphs, err := gen.Generate(ctx, ipsum.Params{Sentences: 1, Lorem: 1})
		if err != nil {
			panic(err)
		}
		fmt.Printf("request %d: %s\n", i+1, paragraphs[0])
	}
}
