package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	buildingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Building",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"location":  &graphql.Field{Type: geoPointType},
			"image_url": &graphql.Field{Type: graphql.String},
			"rating":    &graphql.Field{Type: graphql.Float},
			"address":   &graphql.Field{Type: graphql.String},
			"architect": &graphql.Field{Type: graphql.String},
			"year":      &graphql.Field{Type: graphql.Int},
			"distance":  &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"transport_mode": &graphql.Field{Type: graphql.String},
			"building_ids":   &graphql.Field{Type: graphql.NewList(graphql.String)},
			"distance_km":    &graphql.Field{Type: graphql.Float},
			"path": &graphql.Field{
				Type:        graphql.NewList(geoPointType),
				Description: "Route geometry, empty when the route has none",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var r domain.Route
					switch v := p.Source.(type) {
					case domain.Route:
						r = v
					case *domain.Route:
						r = *v
					}
					if !r.HasGeometry() {
						return []domain.GeoPoint{}, nil
					}
					return r.Geometry.Coordinates, nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"buildings": &graphql.Field{
				Type:        graphql.NewList(buildingType),
				Description: "List all buildings",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Buildings.List(p.Context)
				},
			},
			"building": &graphql.Field{
				Type:        buildingType,
				Description: "Get a building by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Buildings.GetByID(p.Context, id)
				},
			},
			"buildingsNearby": &graphql.Field{
				Type:        graphql.NewList(buildingType),
				Description: "Buildings within radius_km of a point, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius_km": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1.0},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius_km"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Buildings.FindNearby(p.Context, lat, lon, radius, limit)
				},
			},
			"routes": &graphql.Field{
				Type:        graphql.NewList(routeType),
				Description: "List all routes",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routes.List(p.Context)
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Get a route by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Routes.GetByID(p.Context, id)
				},
			},
			"routesThrough": &graphql.Field{
				Type:        graphql.NewList(routeType),
				Description: "Routes passing through a building",
				Args: graphql.FieldConfigArgument{
					"building_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["building_id"].(string)
					return deps.Routes.ListByBuilding(p.Context, id)
				},
			},
			"circle": &graphql.Field{
				Type:        graphql.NewList(geoPointType),
				Description: "Closed ring of the radius-filter circle (65 points, last equals first)",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius_km": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius_km"].(float64)
					if radius < 0 {
						return nil, fmt.Errorf("radius_km must not be negative")
					}
					ring := geospatial.BuildCircle(lat, lon, radius)
					points := make([]domain.GeoPoint, len(ring))
					for i, pt := range ring {
						points[i] = domain.GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()}
					}
					return points, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
