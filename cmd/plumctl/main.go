// Command plumctl inspects and garbage-collects process checkpoints
// stored by a disk-backed persistence.Persister, the checkpoint-store
// counterpart to the reference design's PicklePersister.get_checkpoints
// and delete_process_checkpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/kdwarn/plumgo/persistence"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	dir := flag.NewFlagSet("plumctl", flag.ExitOnError)
	dirFlag := dir.String("dir", "./checkpoints", "checkpoint directory for the disk persister")

	switch os.Args[1] {
	case "list":
		dir.Parse(os.Args[2:])
		runList(*dirFlag)
	case "gc":
		dir.Parse(os.Args[2:])
		runGC(*dirFlag, dir.Args())
	case "inspect":
		dir.Parse(os.Args[2:])
		runInspect(*dirFlag, dir.Args())
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: plumctl <list|gc|inspect> [-dir DIR] [args]")
	fmt.Fprintln(os.Stderr, "  list              enumerate every stored checkpoint")
	fmt.Fprintln(os.Stderr, "  gc <pid>...       delete every checkpoint for the given pids")
	fmt.Fprintln(os.Stderr, "  inspect <pid>     print a pid's checkpoint bundle as pretty JSON")
}

func openPersister(dir string) *persistence.DiskPersister {
	p, err := persistence.NewDiskPersister(dir)
	if err != nil {
		log.Fatalf("plumctl: opening checkpoint directory %q: %v", dir, err)
	}
	return p
}

func runList(dir string) {
	p := openPersister(dir)
	ctx := context.Background()

	ids, err := p.GetCheckpoints(ctx)
	if err != nil {
		log.Fatalf("plumctl: listing checkpoints: %v", err)
	}

	sort.Slice(ids, func(i, j int) bool {
		if ids[i].PID != ids[j].PID {
			return ids[i].PID < ids[j].PID
		}
		return ids[i].Tag < ids[j].Tag
	})

	if len(ids) == 0 {
		fmt.Println("no checkpoints found")
		return
	}
	for _, id := range ids {
		tag := id.Tag
		if tag == "" {
			tag = "(untagged)"
		}
		fmt.Printf("%s\t%s\n", id.PID, tag)
	}
}

func runGC(dir string, pids []string) {
	if len(pids) == 0 {
		fmt.Fprintln(os.Stderr, "plumctl gc: at least one pid is required")
		os.Exit(2)
	}

	p := openPersister(dir)
	ctx := context.Background()

	for _, pid := range pids {
		if err := p.DeleteProcessCheckpoints(ctx, pid); err != nil {
			log.Fatalf("plumctl: deleting checkpoints for %s: %v", pid, err)
		}
		fmt.Printf("deleted checkpoints for %s\n", pid)
	}
}

func runInspect(dir string, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "plumctl inspect: a pid is required")
		os.Exit(2)
	}
	pid := args[0]
	tag := ""
	if len(args) > 1 {
		tag = args[1]
	}

	p := openPersister(dir)
	ctx := context.Background()

	bundle, err := p.LoadCheckpoint(ctx, persistence.CheckpointID{PID: pid, Tag: tag})
	if err != nil {
		log.Fatalf("plumctl: loading checkpoint for %s: %v", pid, err)
	}

	os.Stdout.Write(bundle.Pretty())
	fmt.Println()
}
