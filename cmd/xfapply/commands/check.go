package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/orbeon/orbeon-forms-sub002/cmd/xfapply/internal/ui"
	"github.com/orbeon/orbeon-forms-sub002/internal/protocol"
)

// Check parses response files without applying them and lists their
// records group by group
func Check(args []string, w io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: xfapply check <response.xml>...")
	}

	failed := 0
	for _, path := range args {
		fmt.Fprintln(w, ui.Header(filepath.Base(path)))
		batch, err := parseFile(path)
		if err != nil {
			failed++
			fmt.Fprintln(w, "  "+ui.Error(err.Error()))
			continue
		}
		for i, group := range batch.Groups {
			fmt.Fprintf(w, "  group %d: %d deletion(s), %d detail(s), %d action(s)\n",
				i+1, len(group.Deletions), len(group.Details), len(group.Actions))
			if dialogs := group.DialogsToShow(); len(dialogs) > 0 {
				fmt.Fprintln(w, ui.Muted("    shows "+strings.Join(dialogs, ", ")))
			}
			var names []string
			for _, a := range group.Actions {
				names = append(names, a.ActionName())
			}
			if len(names) > 0 {
				fmt.Fprintln(w, ui.Muted("    actions: "+strings.Join(names, ", ")))
			}
		}
		if n := len(batch.Errors); n > 0 {
			fmt.Fprintf(w, "  %d server error(s)\n", n)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d response(s) could not be parsed", failed, len(args))
	}
	return nil
}

func parseFile(path string) (*protocol.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return protocol.Parse(f)
}
