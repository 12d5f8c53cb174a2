package odwb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
	"github.com/tborlee/points-verts-web/pkg/util"
)

const (
	defaultBaseURL  = "https://www.odwb.be/api/records/1.0"
	defaultDataset  = "points-verts-de-ladeps"
	defaultPageSize = 30
)

// Options configures the records API client.
type Options struct {
	BaseURL  string
	Dataset  string
	PageSize int
	Timeout  time.Duration
}

// Client fetches walk dates and records from the ODWB open-data portal.
type Client struct {
	baseURL    string
	dataset    string
	pageSize   int
	httpClient *http.Client
}

// NewClient builds an API client.
func NewClient(opts Options) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	dataset := strings.TrimSpace(opts.Dataset)
	if dataset == "" {
		dataset = defaultDataset
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(base, "/"),
		dataset:  dataset,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchDates retrieves the number of walks grouped by calendar day.
func (c *Client) FetchDates(ctx context.Context) ([]walks.EventDate, error) {
	query := url.Values{}
	query.Set("dataset", c.dataset)
	query.Set("x", "date")
	query.Set("y.walks_count.expr", "id")
	query.Set("y.walks_count.func", "COUNT")

	var raw []dateBucket
	if err := c.get(ctx, "analyze", query, &raw); err != nil {
		return nil, err
	}
	return normalizeDates(raw), nil
}

// FetchWalks retrieves the walks scheduled on date.
func (c *Client) FetchWalks(ctx context.Context, date time.Time) ([]walks.WalkRecord, error) {
	query := url.Values{}
	query.Set("dataset", c.dataset)
	query.Set("q", "date="+util.DayKey(date))
	query.Set("rows", strconv.Itoa(c.pageSize))

	var raw searchResponse
	if err := c.get(ctx, "search", query, &raw); err != nil {
		return nil, err
	}
	return normalizeRecords(raw.Records), nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	target := fmt.Sprintf("%s/%s/?%s", c.baseURL, endpoint, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%s request error: status=%d body=%s", endpoint, resp.StatusCode, string(payload))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

type dateBucket struct {
	X struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Day   int `json:"day"`
	} `json:"x"`
	WalksCount float64 `json:"walks_count"`
}

type searchResponse struct {
	NHits   int         `json:"nhits"`
	Records []apiRecord `json:"records"`
}

type apiRecord struct {
	DatasetID string    `json:"datasetid"`
	RecordID  string    `json:"recordid"`
	Fields    apiFields `json:"fields"`
}

// apiFields mirrors the upstream dataset schema, typos included.
type apiFields struct {
	ID              json.Number `json:"id"`
	Number          string      `json:"ndeg_pv"`
	Date            string      `json:"date"`
	Activity        string      `json:"activite"`
	Status          string      `json:"statut"`
	Locality        string      `json:"localite"`
	Entity          string      `json:"entite"`
	Province        string      `json:"province"`
	Latitude        float64     `json:"latitude"`
	Longitude       float64     `json:"longitude"`
	MeetingPoint    string      `json:"lieu_de_rendez_vous"`
	MeetingInfo     string      `json:"infos_rendez_vous"`
	Station         string      `json:"gare"`
	MapSheet        string      `json:"ign"`
	Group           string      `json:"groupement"`
	FirstName       string      `json:"prenom"`
	LastName        string      `json:"nom"`
	Phone           string      `json:"gsm"`
	TenKm           string      `json:"10km"`
	FifteenKm       string      `json:"15km"`
	Bike            string      `json:"velo"`
	MountainBike    string      `json:"vtt"`
	Orientation     string      `json:"orientiation"`
	GuidedTour      string      `json:"balade_guidee"`
	ReducedMobility string      `json:"pmr"`
	Strollers       string      `json:"poussettes"`
	Refreshments    string      `json:"ravitaillement"`
	Bewapp          string      `json:"bewapp"`
}

func normalizeDates(buckets []dateBucket) []walks.EventDate {
	byDay := make(map[time.Time]int, len(buckets))
	for _, b := range buckets {
		if b.X.Year == 0 || b.X.Month < 1 || b.X.Month > 12 || b.X.Day < 1 {
			continue
		}
		date := util.MidnightUTC(b.X.Year, time.Month(b.X.Month), b.X.Day)
		if date.Day() != b.X.Day {
			continue
		}
		byDay[date] += int(b.WalksCount)
	}

	dates := make([]walks.EventDate, 0, len(byDay))
	for date, count := range byDay {
		dates = append(dates, walks.EventDate{Date: date, WalkCount: count})
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Date.Before(dates[j].Date)
	})
	return dates
}

func normalizeRecords(records []apiRecord) []walks.WalkRecord {
	out := make([]walks.WalkRecord, 0, len(records))
	for _, rec := range records {
		f := rec.Fields
		id := strings.TrimSpace(f.ID.String())
		if id == "" {
			id = rec.RecordID
		}
		walk := walks.WalkRecord{
			ID:           id,
			Number:       strings.TrimSpace(f.Number),
			Date:         normalizeDay(f.Date),
			Activity:     parseActivity(f.Activity),
			Locality:     strings.TrimSpace(f.Locality),
			Entity:       strings.TrimSpace(f.Entity),
			Province:     strings.TrimSpace(f.Province),
			Location:     walks.Coordinate{Latitude: f.Latitude, Longitude: f.Longitude},
			MeetingPoint: strings.TrimSpace(f.MeetingPoint),
			MeetingInfo:  strings.TrimSpace(f.MeetingInfo),
			Station:      strings.TrimSpace(f.Station),
			MapSheet:     strings.TrimSpace(f.MapSheet),
			Status:       parseStatus(f.Status),
			Group:        strings.TrimSpace(f.Group),
			Amenities: walks.Amenities{
				ExtraTenKm:      parseYes(f.TenKm),
				ExtraFifteenKm:  parseYes(f.FifteenKm),
				Bike:            parseYes(f.Bike),
				MountainBike:    parseYes(f.MountainBike),
				Orientation:     parseYes(f.Orientation),
				GuidedTour:      parseYes(f.GuidedTour),
				ReducedMobility: parseYes(f.ReducedMobility),
				Strollers:       parseYes(f.Strollers),
				Refreshments:    parseYes(f.Refreshments),
				Bewapp:          parseYes(f.Bewapp),
			},
		}
		contact := walks.Contact{
			FirstName: strings.TrimSpace(f.FirstName),
			LastName:  strings.TrimSpace(f.LastName),
			Phone:     strings.TrimSpace(f.Phone),
		}
		if contact != (walks.Contact{}) {
			walk.Contact = &contact
		}
		out = append(out, walk)
	}
	return out
}

// fold normalises accents to NFC and case-folds so "Annulé", "ANNULÉ" and a
// decomposed "Annulé" compare equal.
func fold(value string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(value)))
}

var (
	statusModified  = fold("Modifié")
	statusCancelled = fold("Annulé")
	activityOrient  = fold("Orientation")
	answerYes       = fold("Oui")
)

func parseStatus(value string) walks.Status {
	switch fold(value) {
	case statusCancelled:
		return walks.StatusCancelled
	case statusModified:
		return walks.StatusModified
	default:
		return walks.StatusActive
	}
}

func parseActivity(value string) walks.Activity {
	if fold(value) == activityOrient {
		return walks.ActivityOrientation
	}
	return walks.ActivityWalk
}

func parseYes(value string) bool {
	return fold(value) == answerYes
}

func normalizeDay(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) >= len(util.DayLayout) {
		if ts, err := time.Parse(util.DayLayout, trimmed[:len(util.DayLayout)]); err == nil {
			return util.DayKey(ts)
		}
	}
	return trimmed
}
