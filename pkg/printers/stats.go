package printers

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/tilegrid/pkg/fetch"
	"tableflip.dev/tilegrid/pkg/imagecache"
)

// CacheStats prints one row per tier.
func (pp *PrettyPrint) CacheStats(st imagecache.TieredStats) {
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("tier"), bold.Sprint("entries"), bold.Sprint("size"), bold.Sprint("ceiling"),
		bold.Sprint("used"), bold.Sprint("hits"), bold.Sprint("misses"), bold.Sprint("evicted"),
		bold.Sprint("expired"), bold.Sprint("corrupt"))
	addTier(tbl, st.Memory)
	if st.Disk != nil {
		addTier(tbl, *st.Disk)
	}
	_, _ = fmt.Fprintln(pp.Output(), tbl)
}

func addTier(tbl *uitable.Table, s imagecache.Stats) {
	used := 0.0
	if s.CeilingBytes > 0 {
		used = 100 * float64(s.TotalBytes) / float64(s.CeilingBytes)
	}
	tbl.AddRow(s.Name,
		humanize.Comma(int64(s.Count)),
		humanize.IBytes(uint64(s.TotalBytes)),
		humanize.IBytes(uint64(s.CeilingBytes)),
		fmt.Sprintf("%.1f%%", used),
		humanize.Comma(int64(s.Hits)),
		humanize.Comma(int64(s.Misses)),
		humanize.Comma(int64(s.Evictions)),
		humanize.Comma(int64(s.Expired)),
		humanize.Comma(int64(s.Corrupt)))
}

// FetchStats prints scheduler counters.
func (pp *PrettyPrint) FetchStats(st fetch.Stats) {
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("network calls"), humanize.Comma(int64(st.NetworkCalls)))
	tbl.AddRow(bold.Sprint("cache hits"), humanize.Comma(int64(st.StoreHits)))
	tbl.AddRow(bold.Sprint("failures"), humanize.Comma(int64(st.Failures)))
	tbl.AddRow(bold.Sprint("discarded"), humanize.Comma(int64(st.Discarded)))
	tbl.AddRow(bold.Sprint("outstanding"), st.Outstanding)
	tbl.AddRow(bold.Sprint("generation"), st.Generation)
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(pp.Output(), tbl)
}

// JSON writes v as indented JSON.
func (pp *PrettyPrint) JSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(pp.Output(), string(b))
	return err
}
