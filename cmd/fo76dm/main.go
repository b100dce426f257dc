// Copyright 2026 The fo76dm Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	fo76dm "github.com/gjonn/fo76dm"
)

// Exit codes, per the external command surface: 0 ok, 1 user error
// (bad args/missing profile), 2 data error (parse/store), 130 cancelled.
const (
	exitOK        = 0
	exitUserError = 1
	exitDataError = 2
	exitCancelled = 130
)

var (
	label      string
	recordType string
	edidGlob   string
	latest     bool
	oldID      int64
	newID      int64
	keepN      int
)

func openStoreFor(esmPath string) (*fo76dm.Store, error) {
	return fo76dm.OpenStore(fo76dm.StorePathFor(esmPath), nil)
}

func runSnapshot(cmd *cobra.Command, args []string) {
	esmPath := args[0]
	store, err := openStoreFor(esmPath)
	if err != nil {
		log.Printf("store unavailable: %v", err)
		os.Exit(exitDataError)
	}
	defer store.Close()

	f, err := fo76dm.New(esmPath, nil)
	if err != nil {
		log.Printf("opening %s: %v", esmPath, err)
		os.Exit(exitDataError)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.Parse(ctx); err != nil {
		if fo76dm.IsCancelled(err) {
			os.Exit(exitCancelled)
		}
		log.Printf("parsing %s: %v", esmPath, err)
		os.Exit(exitDataError)
	}
	for _, w := range f.Warnings {
		log.Println("warning:", w)
	}

	tx, err := store.BeginSnapshot(label, f.ESMSHA256)
	if err != nil {
		log.Printf("begin snapshot: %v", err)
		os.Exit(exitDataError)
	}
	if err := tx.InsertRecords(f.Records); err != nil {
		tx.Rollback()
		log.Printf("insert records: %v", err)
		os.Exit(exitDataError)
	}
	id, err := tx.Commit()
	if err != nil {
		log.Printf("commit snapshot: %v", err)
		os.Exit(exitDataError)
	}
	fmt.Printf("snapshot %d committed: %s records\n", id, humanize.Comma(int64(len(f.Records))))
}

func runList(cmd *cobra.Command, args []string) {
	esmPath := args[0]
	store, err := openStoreFor(esmPath)
	if err != nil {
		log.Printf("store unavailable: %v", err)
		os.Exit(exitDataError)
	}
	defer store.Close()

	snaps, err := store.ListSnapshots()
	if err != nil {
		log.Printf("list snapshots: %v", err)
		os.Exit(exitDataError)
	}
	for _, s := range snaps {
		fmt.Printf("%d\t%s\t%s\t%s records\n", s.ID, s.Label, s.CreatedAt.Format("2006-01-02T15:04:05"), humanize.Comma(int64(s.RecordCount)))
	}
}

func runDiff(cmd *cobra.Command, args []string) {
	esmPath := args[0]
	store, err := openStoreFor(esmPath)
	if err != nil {
		log.Printf("store unavailable: %v", err)
		os.Exit(exitDataError)
	}
	defer store.Close()

	fromID, toID := oldID, newID
	if latest {
		snaps, err := store.ListSnapshots()
		if err != nil {
			log.Printf("list snapshots: %v", err)
			os.Exit(exitDataError)
		}
		if len(snaps) < 2 {
			log.Println("need at least two snapshots for --latest")
			os.Exit(exitUserError)
		}
		toID, fromID = snaps[0].ID, snaps[1].ID
	}

	d, err := fo76dm.Compare(store, fromID, store, toID, recordType)
	if err != nil {
		log.Printf("diff: %v", err)
		os.Exit(exitDataError)
	}
	if d.Empty {
		fmt.Println("snapshots share esm_sha256; diff is empty")
		return
	}
	for _, r := range d.Added {
		fmt.Printf("+ %s %s %s\n", r.FormID, r.Type, r.EditorID)
	}
	for _, r := range d.Removed {
		fmt.Printf("- %s %s %s\n", r.FormID, r.Type, r.EditorID)
	}
	for _, m := range d.Modified {
		fmt.Printf("~ %s %s %s\n", m.FormID, m.Type, m.EditorID)
		for _, fc := range m.Fields {
			fmt.Printf("    %s: %v -> %v\n", fc.Name, fc.Old, fc.New)
		}
	}
}

func runSearch(cmd *cobra.Command, args []string) {
	esmPath := args[0]
	query := args[1]
	store, err := openStoreFor(esmPath)
	if err != nil {
		log.Printf("store unavailable: %v", err)
		os.Exit(exitDataError)
	}
	defer store.Close()

	snaps, err := store.ListSnapshots()
	if err != nil || len(snaps) == 0 {
		log.Println("no snapshots to search")
		os.Exit(exitUserError)
	}

	q := fo76dm.NewQuery(store, snaps[0].ID)
	pattern := query
	if edidGlob != "" {
		pattern = edidGlob
	}
	records, err := q.Find(pattern, recordType)
	if err != nil {
		log.Printf("search: %v", err)
		os.Exit(exitDataError)
	}
	for _, r := range records {
		fmt.Printf("%s\t%s\t%s\n", r.FormID, r.Type, r.EditorID)
	}
}

func runPurge(cmd *cobra.Command, args []string) {
	esmPath := args[0]
	store, err := openStoreFor(esmPath)
	if err != nil {
		log.Printf("store unavailable: %v", err)
		os.Exit(exitDataError)
	}
	defer store.Close()
	if err := store.Purge(keepN); err != nil {
		log.Printf("purge: %v", err)
		os.Exit(exitDataError)
	}
}

func runClear(cmd *cobra.Command, args []string) {
	esmPath := args[0]
	store, err := openStoreFor(esmPath)
	if err != nil {
		log.Printf("store unavailable: %v", err)
		os.Exit(exitDataError)
	}
	defer store.Close()
	if err := store.ClearAll(); err != nil {
		log.Printf("clear: %v", err)
		os.Exit(exitDataError)
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "fo76dm",
		Short: "A Fallout 76 master-file datamining tool",
		Long:  "Parses a master data file into content-addressed snapshots and diffs them",
	}

	var snapshotCmd = &cobra.Command{
		Use:   "snapshot ESM_PATH",
		Short: "Parse master file and commit a snapshot",
		Args:  cobra.ExactArgs(1),
		Run:   runSnapshot,
	}
	snapshotCmd.Flags().StringVar(&label, "label", "", "human-readable snapshot label")

	var listCmd = &cobra.Command{
		Use:   "list ESM_PATH",
		Short: "Print the snapshots table",
		Args:  cobra.ExactArgs(1),
		Run:   runList,
	}

	var diffCmd = &cobra.Command{
		Use:   "diff ESM_PATH",
		Short: "Emit a diff between two snapshots",
		Args:  cobra.ExactArgs(1),
		Run:   runDiff,
	}
	diffCmd.Flags().BoolVar(&latest, "latest", false, "diff the two most recent snapshots")
	diffCmd.Flags().Int64Var(&oldID, "old", 0, "older snapshot id")
	diffCmd.Flags().Int64Var(&newID, "new", 0, "newer snapshot id")
	diffCmd.Flags().StringVar(&recordType, "type", "", "restrict to one record type")

	var searchCmd = &cobra.Command{
		Use:   "search ESM_PATH QUERY",
		Short: "Query the most recent snapshot",
		Args:  cobra.ExactArgs(2),
		Run:   runSearch,
	}
	searchCmd.Flags().StringVar(&recordType, "type", "", "restrict to one record type")
	searchCmd.Flags().StringVar(&edidGlob, "edid", "", "glob pattern over editor_id")

	var purgeCmd = &cobra.Command{
		Use:   "purge ESM_PATH",
		Short: "Keep only the N most recent snapshots",
		Args:  cobra.ExactArgs(1),
		Run:   runPurge,
	}
	purgeCmd.Flags().IntVar(&keepN, "keep", 5, "number of snapshots to keep")

	var clearCmd = &cobra.Command{
		Use:   "clear ESM_PATH",
		Short: "Delete every snapshot",
		Args:  cobra.ExactArgs(1),
		Run:   runClear,
	}

	rootCmd.AddCommand(snapshotCmd, listCmd, diffCmd, searchCmd, purgeCmd, clearCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(exitUserError)
	}
}
