package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/encops/updatectl/pkg/store"
)

var (
	dbPath string
	dbCmd  = &cobra.Command{
		Use:   "db",
		Short: "Run-history database operations",
	}
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize run-history database if it does not yet exist",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Initializing database...")
			var store, err = store.NewHistoryStore(dbPath)
			if err != nil {
				log.Fatal(err)
				return
			}
			defer store.CloseDB()
			err = store.InitializeDB()
			if err != nil {
				log.Fatal(err)
				return
			}
			fmt.Println("Database has been initialized")
		},
	}
)

func init() {
	initCmd.Flags().StringVar(&dbPath, "db-file", "./updates-history.db", "Path of the SQLite DB file")

	dbCmd.AddCommand(initCmd)
	rootCmd.AddCommand(dbCmd)
}
