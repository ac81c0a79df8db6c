package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/anoixa/asset-store/config"
	"github.com/anoixa/asset-store/internal/app"
)

// variantsCmd 变体管理命令
var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "Variant maintenance commands",
	Long:  "Generate image variants outside the request path.",
}

var variantsGenerateCmd = &cobra.Command{
	Use:   "generate <file-id>",
	Short: "Generate all configured variants of a file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		withContainer(func(c *app.Container) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := c.Variants.GenerateAll(ctx, args[0]); err != nil {
				return err
			}
			file, err := c.Assets.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(file.ReadyVariants())
		})
	},
}

var variantsEnsureCmd = &cobra.Command{
	Use:   "ensure <file-id> <type>",
	Short: "Ensure a single variant exists",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		withContainer(func(c *app.Container) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			variant, err := c.Variants.EnsureVariant(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(variant)
		})
	},
}

var variantsBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Scan completed images once and generate missing variants",
	Run: func(cmd *cobra.Command, args []string) {
		withContainer(func(c *app.Container) error {
			stats, err := c.Backfill.RunOnce(context.Background())
			if err != nil {
				return err
			}
			log.Printf("Backfill finished: scanned=%d submitted=%d skipped=%d", stats.Scanned, stats.Submitted, stats.Skipped)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(variantsCmd)
	variantsCmd.AddCommand(variantsGenerateCmd, variantsEnsureCmd, variantsBackfillCmd)

	variantsGenerateCmd.Flags().Duration("timeout", 5*time.Minute, "Generation timeout")
	variantsEnsureCmd.Flags().Duration("timeout", 2*time.Minute, "Generation timeout")
}

// withContainer 初始化容器执行命令，退出前关闭（会等待已提交的后台任务）
func withContainer(fn func(c *app.Container) error) {
	config.InitConfig()
	container := app.NewContainer(config.Get())
	if err := container.Init(); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	err := fn(container)
	if cerr := container.Close(); cerr != nil {
		log.Printf("Error closing container: %v", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
