package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/anoixa/asset-store/internal/app"
	"github.com/anoixa/asset-store/internal/assets"
)

// urlCmd 为运维人员签发下载地址，跳过访问判定
var urlCmd = &cobra.Command{
	Use:   "url <file-ref>",
	Short: "Issue a download URL for a file",
	Long:  `Issue a time-limited download URL for a file id or legacy storage key. Access checks are skipped; the variant is generated when missing.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		variant, _ := cmd.Flags().GetString("variant")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		withContainer(func(c *app.Container) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			res, err := c.OperatorAssets().DownloadURL(ctx, assets.DownloadRequest{FileRef: args[0], Variant: variant})
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

func init() {
	rootCmd.AddCommand(urlCmd)
	urlCmd.Flags().String("variant", "", "Variant type, empty for the original")
	urlCmd.Flags().Duration("timeout", 2*time.Minute, "Generation timeout")
}
