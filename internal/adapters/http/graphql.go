package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/core/usecases"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
)

var errPathForbidden = errors.New("path belongs to another user")

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	densityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Density",
		Fields: graphql.Fields{
			"geohash":   &graphql.Field{Type: graphql.String},
			"count":     &graphql.Field{Type: graphql.Int},
			"timestamp": &graphql.Field{Type: graphql.DateTime},
			"center":    &graphql.Field{Type: geoPointType},
			"bounds":    &graphql.Field{Type: boundsType},
		},
	})

	cellType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Cell",
		Fields: graphql.Fields{
			"geohash":   &graphql.Field{Type: graphql.String},
			"precision": &graphql.Field{Type: graphql.Int},
			"bounds":    &graphql.Field{Type: boundsType},
			"center":    &graphql.Field{Type: geoPointType},
			"width_m":   &graphql.Field{Type: graphql.Float},
			"height_m":  &graphql.Field{Type: graphql.Float},
		},
	})

	pathPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PathPoint",
		Fields: graphql.Fields{
			"location":  &graphql.Field{Type: geoPointType},
			"geohash":   &graphql.Field{Type: graphql.String},
			"timestamp": &graphql.Field{Type: graphql.DateTime},
			"freshness": &graphql.Field{Type: graphql.Float},
		},
	})

	userPathType := graphql.NewObject(graphql.ObjectConfig{
		Name: "UserPath",
		Fields: graphql.Fields{
			"user_id":         &graphql.Field{Type: graphql.String},
			"day":             &graphql.Field{Type: graphql.String},
			"points":          &graphql.Field{Type: graphql.NewList(pathPointType)},
			"distance_meters": &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"density": &graphql.Field{
				Type:        densityType,
				Description: "Pings recorded in one exact cell during the trailing window",
				Args: graphql.FieldConfigArgument{
					"geohash": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Density.QueryDensity(p.Context, p.Args["geohash"].(string), time.Time{})
				},
			},
			"densities": &graphql.Field{
				Type:        graphql.NewList(densityType),
				Description: "Densities for several cells, in the order given",
				Args: graphql.FieldConfigArgument{
					"geohashes": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					raw, _ := p.Args["geohashes"].([]interface{})
					cells := make([]string, 0, len(raw))
					for _, v := range raw {
						s, ok := v.(string)
						if !ok {
							return nil, fmt.Errorf("geohashes must be strings")
						}
						cells = append(cells, s)
					}
					return deps.Density.QueryMany(p.Context, cells, time.Time{})
				},
			},
			"densityAt": &graphql.Field{
				Type:        densityType,
				Description: "Density of the cell containing a point",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					return deps.Density.QueryAt(p.Context, domain.GeoPoint{Lat: lat, Lon: lon}, time.Time{})
				},
			},
			"encode": &graphql.Field{
				Type:        graphql.String,
				Description: "Geohash of a point",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"precision": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: geohash.DefaultPrecision},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					precision := p.Args["precision"].(int)
					return geohash.Encode(lat, lon, precision)
				},
			},
			"decode": &graphql.Field{
				Type:        cellType,
				Description: "Bounding box and centroid of a cell",
				Args: graphql.FieldConfigArgument{
					"geohash": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					cell := p.Args["geohash"].(string)
					box, err := geohash.Decode(cell)
					if err != nil {
						return nil, err
					}
					return newCellResponse(cell, box), nil
				},
			},
			"path": &graphql.Field{
				Type:        userPathType,
				Description: "Footprint trail of the session user for one day (YYYY-MM-DD, default today)",
				Args: graphql.FieldConfigArgument{
					"user_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"date":    &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					userID := p.Args["user_id"].(string)
					session, ok := SessionFromCtx(p.Context)
					if !ok || session.UserID != userID {
						return nil, errPathForbidden
					}
					loc := deps.Location
					if loc == nil {
						loc = time.UTC
					}
					now := deps.Density.Now()
					day, _ := p.Args["date"].(string)
					if day == "" {
						day = now.In(loc).Format(usecases.DayLayout)
					}
					return deps.Paths.DailyPath(p.Context, userID, day, loc, now)
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
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
