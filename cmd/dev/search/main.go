// Command search runs a search box over the embedded dataset. Every stdin
// line replaces the box input, so pasting lines quickly shows the debounce
// dropping intermediate queries.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	dbfs "github.com/garnizeh/folio/db"
	"github.com/garnizeh/folio/internal/fixtures"
	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/internal/portfolio"
	"github.com/garnizeh/folio/internal/repository/memory"
	"github.com/garnizeh/folio/internal/search"
	"github.com/garnizeh/folio/internal/urlsync"
	"github.com/garnizeh/folio/pkg/repository"
)

func main() {
	rawURL := flag.String("url", "/projects", "Page URL; its ?q= seeds the box")
	debounce := flag.Duration("debounce", search.DefaultDebounce, "Debounce delay")
	flag.Parse()

	u, err := url.Parse(*rawURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "URL error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	raw, err := dbfs.PortfolioSeed()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
		os.Exit(1)
	}
	ds, err := fixtures.Load(ctx, raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
		os.Exit(1)
	}
	svc := portfolio.New(memory.New(ds, nil), nil)
	projects, err := repository.List[models.Project](ctx, svc.Provider(), models.Projects)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch error: %v\n", err)
		os.Exit(1)
	}
	names, err := svc.TechnologyNames(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch error: %v\n", err)
		os.Exit(1)
	}

	var out sync.Mutex
	qs := urlsync.New(u, urlsync.NavigatorFunc(func(u *url.URL) {
		out.Lock()
		defer out.Unlock()
		fmt.Printf("  url -> %s\n", u)
	}))
	show := func(q string, results []*models.Project) {
		out.Lock()
		defer out.Unlock()
		fmt.Printf("%q: %d of %d\n", q, len(results), len(projects))
		for _, p := range results {
			fmt.Printf("  %s  %s\n", p.ID, p.Name)
		}
	}

	box := search.NewBox(projects, portfolio.ProjectSearchText(names), search.Options[*models.Project]{
		Debounce: *debounce,
		Initial:  qs.Initial(),
		OnCommit: func(q string, results []*models.Project) {
			qs.Commit(q)
			show(q, results)
		},
	})
	defer box.Close()
	show(box.Query(), box.Results())

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		box.SetQuery(sc.Text())
	}
	// let the last query commit before exiting
	for box.Pending() {
		time.Sleep(10 * time.Millisecond)
	}
}
