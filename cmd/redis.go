package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrickhamzaokello/ColabFavourites/cache"
	"github.com/patrickhamzaokello/ColabFavourites/config"
	"github.com/patrickhamzaokello/ColabFavourites/db"
)

var redisClear bool

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis result cache",
	Long:  `Connects to Redis, performs a write/read/delete round trip under the cache prefix and optionally clears every cached result.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Testing Redis connection...")

		cfg := config.Load()
		fmt.Printf("Redis: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := db.ConnectRedis(cfg); err != nil {
			log.Fatalf("Cannot connect to Redis: %v", err)
		}
		defer func() {
			if err := db.CloseRedis(); err != nil {
				log.Printf("Error closing Redis connection: %v", err)
			}
		}()
		fmt.Println("Connected.")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store := cache.NewRedisStore(db.RedisClient, redisKeyPrefix)
		if err := store.Check(ctx); err != nil {
			log.Fatalf("Redis round trip failed: %v", err)
		}
		fmt.Println("Round trip OK.")

		if redisClear {
			n, err := store.Clear(ctx)
			if err != nil {
				log.Fatalf("Clearing cache failed: %v", err)
			}
			fmt.Printf("Removed %d cached results.\n", n)
		}
	},
}

func init() {
	redisCmd.Flags().BoolVar(&redisClear, "clear", false, "delete every cached result")
	rootCmd.AddCommand(redisCmd)
}
