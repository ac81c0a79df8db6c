package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/anoixa/asset-store/cache"
	"github.com/anoixa/asset-store/config"
)

// cacheCmd 缓存管理命令
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
}

// cacheEvictCmd 清除文件记录缓存
var cacheEvictCmd = &cobra.Command{
	Use:   "evict <file-id>...",
	Short: "Evict cached file records",
	Long:  `Evict cached file records after manual database edits. Only useful with the redis cache; the memory cache lives in the server process.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig()

		provider, err := cache.NewProvider(config.Get())
		if err != nil {
			log.Fatalf("Failed to connect cache: %v", err)
		}
		defer provider.Close()

		ctx := context.Background()
		for _, id := range args {
			if err := provider.Delete(ctx, cache.FileRecord.BuildID(id)); err != nil {
				log.Printf("Failed to evict %s: %v", id, err)
				continue
			}
			log.Printf("Evicted %s from %s cache", id, provider.Name())
		}
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
}
