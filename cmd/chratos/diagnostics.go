// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fjl/memsize"
	"github.com/olekukonko/tablewriter"
	"github.com/pbnjay/memory"

	"github.com/chratos-system/chratos-sub002/node"
	"github.com/chratos-system/chratos-sub002/params"
)

// printDiagnostics renders a --diagnostics snapshot of store, election,
// work-pool and thread-role counters as a table, enriched with an
// approximate in-memory size of the election map (the same memsize-based
// enrichment named for the election/LRU caches) and the total system RAM.
// The RAM figure is reported only; thread and cache sizing do not use it.
func printDiagnostics(n *node.Node) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"metric", "value"})

	table.Append([]string{"store type", n.Store.Type().String()})
	table.Append([]string{"store path", n.Store.Path()})
	table.Append([]string{"live elections", strconv.Itoa(n.Elections.RootCount())})
	table.Append([]string{"pending work requests", strconv.Itoa(n.Work.Pending())})
	table.Append([]string{"total system memory", fmt.Sprintf("%d bytes", memory.TotalMemory())})

	sizes := memsize.Scan(n.Elections)
	table.Append([]string{"election manager memory (approx)", fmt.Sprintf("%d bytes", sizes.Total)})

	for role, count := range params.ThreadRoleCounts() {
		table.Append([]string{"goroutines in role " + role.String(), strconv.Itoa(count)})
	}

	table.Render()
}
