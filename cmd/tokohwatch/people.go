package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/tokohwatch/internal/roster"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage tracked people",
}

var peopleImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import people from a CSV or YAML roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		people, err := roster.ParseFile(args[0])
		if err != nil {
			return err
		}
		res := roster.Import(db, people)

		fmt.Println("Import complete:")
		fmt.Printf("  New: %d\n", res.Imported)
		fmt.Printf("  Updated: %d\n", res.Updated)
		fmt.Printf("  Skipped: %d\n", res.Skipped)
		if res.Errors > 0 {
			fmt.Printf("  Errors: %d\n", res.Errors)
		}
		return nil
	},
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked people",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		people, err := db.ListPeople()
		if err != nil {
			return err
		}
		if len(people) == 0 {
			fmt.Println("No people tracked. Import a roster with: tokohwatch people import <file>")
			return nil
		}

		for _, p := range people {
			fmt.Printf("  [%d] %s", p.ID, p.Name)
			if p.Position != "" {
				fmt.Printf(" - %s", p.Position)
			}
			fmt.Println()
			if p.Alias != "" {
				fmt.Printf("        alias: %s\n", p.Alias)
			}
		}
		return nil
	},
}

var peopleSetCmd = &cobra.Command{
	Use:   "set [id] [field] [value]",
	Short: "Edit one field (nama, alias, jenis_kelamin, kta, jabatan, tingkat)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := db.UpdatePersonField(id, args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("Updated person [%d] %s\n", id, args[1])
		return nil
	},
}

var wipeYes bool

var peopleWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every tracked person (analysis records are kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if !wipeYes {
			n, err := db.CountPeople()
			if err != nil {
				return err
			}
			fmt.Printf("Delete all %d people? [y/N]: ", n)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			answer = strings.TrimSpace(strings.ToLower(answer))
			if answer != "y" && answer != "yes" {
				return fmt.Errorf("aborted")
			}
		}

		n, err := db.DeleteAllPeople()
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d people\n", n)
		return nil
	},
}

func init() {
	peopleWipeCmd.Flags().BoolVarP(&wipeYes, "yes", "y", false, "Do not ask for confirmation")

	peopleCmd.AddCommand(peopleImportCmd)
	peopleCmd.AddCommand(peopleListCmd)
	peopleCmd.AddCommand(peopleSetCmd)
	peopleCmd.AddCommand(peopleWipeCmd)
}
