package query

import (
	"context"
	"fmt"
	"math"
	"sort"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

const (
	// EarthRadiusKm is the mean earth radius used for great-circle distances.
	EarthRadiusKm = 6371.0
	// DefaultRadiusKm applies when no radius is requested.
	DefaultRadiusKm = 10.0
)

// NearbyUsersInput locates users around an origin. When Origin is nil the
// caller's stored location is used.
type NearbyUsersInput struct {
	UserID   uuid.UUID
	Origin   *types.Location
	RadiusKm float64
}

// NearbyUser is a profile within range of the origin.
type NearbyUser struct {
	Profile      types.UserProfile
	Location     types.Location
	DistanceKm   float64
	DistanceText string
}

// NearbyUsersQuery finds users whose last location is within the radius.
type NearbyUsersQuery struct {
	source        SnapshotSource
	defaultRadius float64
}

// NewNearbyUsersQuery constructs the query. A non-positive default radius
// falls back to DefaultRadiusKm.
func NewNearbyUsersQuery(source SnapshotSource, defaultRadiusKm float64) *NearbyUsersQuery {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = DefaultRadiusKm
	}
	return &NearbyUsersQuery{source: source, defaultRadius: defaultRadiusKm}
}

var _ gocommand.Querier[NearbyUsersInput, []NearbyUser] = (*NearbyUsersQuery)(nil)

// Query implements gocommand.Querier. Results are ordered by ascending
// distance; the caller and users without a profile are excluded.
func (q *NearbyUsersQuery) Query(ctx context.Context, input NearbyUsersInput) ([]NearbyUser, error) {
	if q.source == nil {
		return nil, types.ErrMissingSnapshot
	}
	if input.UserID == uuid.Nil && input.Origin == nil {
		return nil, types.InvalidArgument("query: nearby users requires a user id or origin")
	}
	if input.RadiusKm < 0 {
		return nil, types.InvalidArgument("query: radius must not be negative")
	}
	radius := input.RadiusKm
	if radius == 0 {
		radius = q.defaultRadius
	}

	snap, err := q.source.GetOrLoad(ctx, types.CollectionUsers, types.CollectionLocations)
	if err != nil {
		return nil, err
	}
	locations := snap.Locations()
	self := input.UserID.String()

	var origin types.Location
	switch {
	case input.Origin != nil:
		origin = *input.Origin
	default:
		found := false
		for _, loc := range locations {
			if loc.UserID == self {
				origin, found = loc, true
				break
			}
		}
		if !found {
			return nil, types.NotFound("query: no stored location for " + self)
		}
	}

	profiles := make(map[string]types.UserProfile)
	for _, profile := range snap.Users() {
		profiles[profile.UserID.String()] = profile
	}

	out := make([]NearbyUser, 0)
	for _, loc := range locations {
		if input.UserID != uuid.Nil && loc.UserID == self {
			continue
		}
		profile, ok := profiles[loc.UserID]
		if !ok {
			continue
		}
		distance := HaversineKm(origin.Latitude, origin.Longitude, loc.Latitude, loc.Longitude)
		if distance > radius {
			continue
		}
		out = append(out, NearbyUser{
			Profile:      profile,
			Location:     loc,
			DistanceKm:   distance,
			DistanceText: FormatDistance(distance),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Location.UserID < out[j].Location.UserID
	})
	return out, nil
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// FormatDistance renders distances under a kilometre in metres, otherwise in
// kilometres with one decimal.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1fkm", km)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
