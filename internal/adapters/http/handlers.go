package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/core/mapview"
	"github.com/samirrijal/archmap/internal/core/usecases"
	"github.com/samirrijal/archmap/internal/pkg/geospatial"
)

const geoJSONContentType = "application/geo+json"

// CatalogStats holds row counts of the map catalog.
type CatalogStats struct {
	Buildings   int    `json:"buildings"`
	Routes      int    `json:"routes"`
	LastCreated string `json:"last_created,omitempty"`
}

// StatsHandler returns row counts from the catalog tables.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats CatalogStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM buildings),
				(SELECT count(*) FROM routes),
				COALESCE((SELECT max(created_at)::text FROM buildings), '')
		`)
		if err := row.Scan(&stats.Buildings, &stats.Routes, &stats.LastCreated); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// ListBuildingsHandler returns every building, paginated.
func ListBuildingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		buildings, err := deps.Buildings.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(paginate(c, buildings, 100, 1000))
	}
}

// GetBuildingHandler returns a building by ID.
func GetBuildingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "building id is required")
		}
		b, err := deps.Buildings.GetByID(c.Context(), id)
		if err != nil {
			return errLookup(c, err, "building")
		}
		return c.JSON(b)
	}
}

// NearbyBuildingsHandler applies the radius filter: buildings within
// radius_km of (lat, lon), nearest first.
func NearbyBuildingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, ok := queryPoint(c)
		if !ok {
			return errBadRequest(c, "lat and lon query parameters are required and must be valid coordinates")
		}
		radiusKm := c.QueryFloat("radius_km", 1)
		if radiusKm <= 0 || radiusKm > 50 {
			return errBadRequest(c, "radius_km must be in (0, 50]")
		}
		limit := c.QueryInt("limit", 50)

		buildings, err := deps.Buildings.FindNearby(c.Context(), lat, lon, radiusKm, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(buildings)
	}
}

// BatchBuildingsHandler returns multiple buildings by ID, e.g. the members of
// a route being created.
func BatchBuildingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ids := splitIDs(c.Query("ids"))
		if len(ids) == 0 {
			return errBadRequest(c, "ids query parameter is required (comma-separated)")
		}
		if len(ids) > 100 {
			return errBadRequest(c, "maximum 100 building IDs allowed")
		}

		buildings, err := deps.Buildings.GetByIDs(c.Context(), ids)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(buildings)
	}
}

// createBuildingRequest is the body of POST /v1/buildings, sent after the
// user picked a spot in add-entity mode.
type createBuildingRequest struct {
	Name      string   `json:"name"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	ImageURL  string   `json:"image_url"`
	Rating    float64  `json:"rating"`
	Address   string   `json:"address"`
	Architect string   `json:"architect"`
	Year      int      `json:"year"`
}

// CreateBuildingHandler stores a new building.
func CreateBuildingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createBuildingRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}

		b := &domain.Building{
			Name:      req.Name,
			Location:  domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon},
			ImageURL:  req.ImageURL,
			Rating:    req.Rating,
			Address:   req.Address,
			Architect: req.Architect,
			Year:      req.Year,
		}
		if err := deps.Buildings.Create(c.Context(), b); err != nil {
			if errors.Is(err, usecases.ErrInvalidBuilding) {
				return errBadRequest(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(b)
	}
}

// BuildingRoutesHandler returns the routes that pass through a building.
func BuildingRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "building id is required")
		}
		routes, err := deps.Routes.ListByBuilding(c.Context(), id)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(routes)
	}
}

// ListRoutesHandler lists routes, optionally filtered by transport mode.
func ListRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mode := domain.TransportMode(c.Query("transport_mode"))
		if mode != "" && !mode.Valid() {
			return errBadRequest(c, "transport_mode must be walking, cycling, driving or transit")
		}

		routes, err := deps.Routes.List(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		if mode != "" {
			filtered := routes[:0:0]
			for _, r := range routes {
				if r.TransportMode == mode {
					filtered = append(filtered, r)
				}
			}
			routes = filtered
		}
		return c.JSON(paginate(c, routes, 100, 500))
	}
}

// GetRouteHandler returns a route by ID.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		route, err := deps.Routes.GetByID(c.Context(), id)
		if err != nil {
			return errLookup(c, err, "route")
		}
		return c.JSON(route)
	}
}

// RouteGeoJSONHandler returns the route as the map draws it: path line plus
// start and end points. A route without geometry has nothing to draw.
func RouteGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		route, err := deps.Routes.GetByID(c.Context(), id)
		if err != nil {
			return errLookup(c, err, "route")
		}

		fc := mapview.RouteLayer(route, c.QueryBool("selected", true))
		if fc == nil {
			return errNotFound(c, "route has no geometry")
		}
		return c.JSON(fc, geoJSONContentType)
	}
}

// RouteBuildingsHandler returns the member buildings of a route in route order.
func RouteBuildingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		route, err := deps.Routes.GetByID(c.Context(), id)
		if err != nil {
			return errLookup(c, err, "route")
		}

		buildings, err := deps.Buildings.GetByIDs(c.Context(), route.BuildingIDs)
		if err != nil {
			return errInternal(c, err.Error())
		}
		byID := make(map[string]domain.Building, len(buildings))
		for _, b := range buildings {
			byID[b.ID] = b
		}
		ordered := make([]domain.Building, 0, len(route.BuildingIDs))
		for _, bid := range route.BuildingIDs {
			if b, ok := byID[bid]; ok {
				ordered = append(ordered, b)
			}
		}
		return c.JSON(ordered)
	}
}

// CircleHandler returns the radius-filter circle as a GeoJSON Polygon feature.
func CircleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, lon, ok := queryPoint(c)
		if !ok {
			return errBadRequest(c, "lat and lon query parameters are required and must be valid coordinates")
		}
		radiusKm := c.QueryFloat("radius_km", -1)
		if radiusKm < 0 || radiusKm > 50 {
			return errBadRequest(c, "radius_km must be in [0, 50]")
		}

		ring := geospatial.BuildCircle(lat, lon, radiusKm)
		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties["radius_km"] = radiusKm
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(f, geoJSONContentType)
	}
}

// queryPoint reads lat/lon query parameters. ok is false when either is
// missing or out of range.
func queryPoint(c *fiber.Ctx) (lat, lon float64, ok bool) {
	if c.Query("lat") == "" || c.Query("lon") == "" {
		return 0, 0, false
	}
	lat = c.QueryFloat("lat", 1000)
	lon = c.QueryFloat("lon", 1000)
	return lat, lon, domain.GeoPoint{Lat: lat, Lon: lon}.Valid()
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
