package partition

import "time"

// Kind names a class of export artifact. Each kind has exactly one producing
// step in the pipeline.
type Kind string

const (
	BlocksMeta     Kind = "blocks_meta"
	Blocks         Kind = "blocks"
	Transactions   Kind = "transactions"
	Receipts       Kind = "receipts"
	Logs           Kind = "logs"
	Contracts      Kind = "contracts"
	Tokens         Kind = "tokens"
	TokenTransfers Kind = "token_transfers"
	Traces         Kind = "traces"
)

// DateLayout is the wire format for block dates in partition paths.
const DateLayout = "2006-01-02"

// ExportPath returns the partition prefix for a given artifact kind and
// logical date: export/<kind>/block_date=<YYYY-MM-DD>/. The layout is the
// wire contract between steps and must stay stable across runs so that
// backfills land on the same objects.
func ExportPath(kind Kind, date time.Time) string {
	return "export/" + string(kind) + "/block_date=" + date.Format(DateLayout) + "/"
}

// ParseDate parses a YYYY-MM-DD logical date as given on the command line.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders a logical date in the partition path format.
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}
