package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/ndlib/verso"
	"github.com/ndlib/verso/diff"
	"github.com/ndlib/verso/snapshot"
	"github.com/ndlib/verso/summary"
)

var (
	configFile = flag.String("config", "", "TOML configuration file")
	storeDir   = flag.String("root", "", "location of the storage directory; overrides the config file")
	author     = flag.String("author", "versoctl", "Author name to record")
	asPatch    = flag.Bool("patch", false, "print diffs as an RFC 6902 JSON patch")
	usage      = `
versoctl [flags] <command> <command arguments>

Possible commands:
    list <type> <id>
    show <type> <id> <version>
    create <type> <id> <file.json> [comment]
    diff <type> <id> <version a> <version b>
    delete <type> <id> <version>
    restore <type> <id> <version>
    purge <type> <id> <days>
    purge-all <days>
    stats
    reconcile
    types
    ids <type>
`
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	var cfg verso.Config
	if *configFile != "" {
		var err error
		cfg, err = verso.LoadConfig(*configFile)
		if err != nil {
			log.Fatalln(err)
		}
	}
	if *storeDir != "" {
		cfg.Root = *storeDir
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	s, err := verso.Open(cfg)
	if err != nil {
		log.Fatalln(err)
	}
	defer s.Close()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return
	}
	need := map[string]int{
		"list": 3, "show": 4, "create": 4, "diff": 5, "delete": 4,
		"restore": 4, "purge": 4, "purge-all": 2, "stats": 1,
		"reconcile": 1, "types": 1, "ids": 2,
	}
	n, ok := need[args[0]]
	if !ok || len(args) < n {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "list":
		err = dolist(s, key(args))
	case "show":
		err = doshow(s, key(args), version(args[3]))
	case "create":
		var comment string
		if len(args) > 4 {
			comment = args[4]
		}
		err = docreate(s, key(args), args[3], comment)
	case "diff":
		err = dodiff(s, key(args), version(args[3]), version(args[4]))
	case "delete":
		var found bool
		found, err = s.DeleteVersion(key(args), version(args[3]))
		if err == nil && !found {
			fmt.Println("no such version")
		}
	case "restore":
		var id verso.VersionID
		id, err = s.Restore(key(args), version(args[3]), *author)
		if err == nil {
			fmt.Println("created version", id)
		}
	case "purge":
		var count int
		count, err = s.PurgeOldVersions(key(args), number(args[3]))
		if err == nil {
			fmt.Println("deleted", count, "versions")
		}
	case "purge-all":
		var count int
		count, err = s.PurgeAll(number(args[1]))
		if err == nil {
			fmt.Println("deleted", count, "versions")
		}
	case "stats":
		err = dostats(s, false)
	case "reconcile":
		err = dostats(s, true)
	case "types":
		var list []string
		list, err = s.ContentTypes()
		printlist(list)
	case "ids":
		var list []string
		list, err = s.ContentIDs(args[1])
		printlist(list)
	}
	if err != nil {
		log.Println(err)
		s.Close()
		os.Exit(1)
	}
}

func key(args []string) verso.Key {
	return verso.Key{Type: args[1], ID: args[2]}
}

func number(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("%s: not a number", s)
	}
	return n
}

func version(s string) verso.VersionID {
	return verso.VersionID(number(s))
}

func printlist(list []string) {
	for _, s := range list {
		fmt.Println(s)
	}
}

func dolist(s *verso.Store, k verso.Key) error {
	list, err := s.ListVersions(k)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "Version\tCreated\tAuthor\tSize\tComment\n")
	for _, v := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", v.ID, v.Created.Format("2006-01-02 15:04:05"), v.Author, v.Size, v.Comment)
	}
	return w.Flush()
}

func doshow(s *verso.Store, k verso.Key, id verso.VersionID) error {
	info, err := s.VersionInfo(k, id)
	if err != nil {
		return err
	}
	data, err := s.GetVersion(k, id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "Version:\t%d\n", info.ID)
	fmt.Fprintf(w, "Created:\t%v\n", info.Created)
	fmt.Fprintf(w, "Author:\t%s\n", info.Author)
	fmt.Fprintf(w, "Comment:\t%s\n", info.Comment)
	fmt.Fprintf(w, "SHA256:\t%s\n", info.Hash)
	fmt.Fprintf(w, "Size:\t%d\n", info.Size)
	w.Flush()
	fmt.Println("---")
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func docreate(s *verso.Store, k verso.Key, fname, comment string) error {
	b, err := os.ReadFile(fname)
	if err != nil {
		return err
	}
	data, err := snapshot.Decode(b)
	if err != nil {
		return err
	}
	id, err := s.CreateVersion(k, data, *author, comment)
	if err != nil {
		return err
	}
	fmt.Println("created version", id)
	return nil
}

func dodiff(s *verso.Store, k verso.Key, a, b verso.VersionID) error {
	changes, err := s.DiffVersions(k, a, b)
	if err != nil {
		return err
	}
	if *asPatch {
		patch, err := diff.JSONPatch(changes)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(patch, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	for _, c := range changes {
		path := c.Path
		if path == "" {
			path = "(root)"
		}
		switch c.Kind {
		case diff.Added:
			fmt.Printf("+ %s: %s\n", path, c.New)
		case diff.Removed:
			fmt.Printf("- %s: %s\n", path, c.Old)
		case diff.Changed:
			fmt.Printf("~ %s: %s -> %s\n", path, c.Old, c.New)
			if p := c.TextPatch(); p != "" {
				fmt.Print(p)
			}
		}
	}
	return nil
}

func dostats(s *verso.Store, reconcile bool) error {
	var st summary.Stats
	var err error
	if reconcile {
		st, err = s.Reconcile()
	} else {
		st, err = s.StorageStats()
	}
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "Type\tVersions\tBytes\n")
	for _, t := range st.Types() {
		ts := st.PerType[t]
		fmt.Fprintf(w, "%s\t%d\t%d\n", t, ts.Versions, ts.Bytes)
	}
	fmt.Fprintf(w, "Total\t%d\t%d\n", st.TotalVersions, st.TotalBytes)
	return w.Flush()
}
