package main

import (
	"log"

	_ "github.com/anoixa/asset-store/docs"

	"github.com/anoixa/asset-store/config"

	"github.com/anoixa/asset-store/cmd"
)

func main() {
	log.Printf("asset store %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
