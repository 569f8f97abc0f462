package footballdata

// Only the fields the fetcher consumes are decoded.

const (
	statusFinished = "FINISHED"
	statusAwarded  = "AWARDED"
)

type matchesEnvelope struct {
	Matches []matchItem `json:"matches"`
}

type matchItem struct {
	ID          int64       `json:"id"`
	UTCDate     string      `json:"utcDate"`
	Status      string      `json:"status"`
	HomeTeam    teamRef     `json:"homeTeam"`
	AwayTeam    teamRef     `json:"awayTeam"`
	Score       score       `json:"score"`
	Competition competition `json:"competition"`
}

type teamRef struct {
	ID        *int64 `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

type score struct {
	FullTime scoreLine `json:"fullTime"`
}

type scoreLine struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type competition struct {
	ID   *int64 `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}
