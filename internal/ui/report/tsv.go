package report

import (
	"fmt"
	"strings"
	"time"

	"handbook/internal/data/cache"
	"handbook/internal/engine/macro"
)

// RenderSitesTSV lists every macro call site, one row per call.
func RenderSitesTSV(results []*macro.Result, root string) []byte {
	var buf strings.Builder

	buf.WriteString("File\tLine\tColumn\tCallee\tKind\tLoad\tSpecifier\tFilename\tRewritten\n")
	for _, res := range sortedResults(results) {
		for _, site := range res.Sites {
			buf.WriteString(fmt.Sprintf("%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
				displayPath(res.Path, root),
				site.Location.Line,
				site.Location.Column,
				site.Callee,
				site.Kind,
				site.Load,
				site.Specifier,
				site.Filename,
				site.Rewritten,
			))
		}
	}

	return []byte(buf.String())
}

// RenderRunsTSV lists recorded runs, newest first as given.
func RenderRunsTSV(runs []cache.Run) []byte {
	var buf strings.Builder

	buf.WriteString("ID\tMode\tStarted\tFinished\tFiles\tRewritten\tFailed\n")
	for _, run := range runs {
		finished := ""
		if !run.FinishedAt.IsZero() {
			finished = run.FinishedAt.Format(time.RFC3339)
		}
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.Mode,
			run.StartedAt.Format(time.RFC3339),
			finished,
			run.Files,
			run.Rewritten,
			run.Failed,
		))
	}

	return []byte(buf.String())
}
