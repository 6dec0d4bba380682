package handlers

import (
	"encoding/json"
	"net/http"
)

type param = map[string]interface{}

func queryParam(name, description, schemaType string) param {
	return param{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      map[string]string{"type": schemaType},
	}
}

func tsidParam() param {
	return param{
		"name":        "tsid",
		"in":          "path",
		"description": "Time series identifier, e.g. 12345.Aquarius.Stage.Day",
		"required":    true,
		"schema":      map[string]string{"type": "string"},
	}
}

func jsonResponse(description string, properties map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{
					"type":       "object",
					"properties": properties,
				},
			},
		},
	}
}

func errorResponses(codes ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(codes))
	errorBody := map[string]interface{}{
		"error":   map[string]string{"type": "string"},
		"message": map[string]string{"type": "string"},
		"code":    map[string]string{"type": "integer"},
	}
	for _, code := range codes {
		out[code] = jsonResponse("Error", errorBody)
	}
	return out
}

func operation(summary, description string, params []param, ok map[string]interface{}, errorCodes ...string) map[string]interface{} {
	responses := errorResponses(errorCodes...)
	responses["200"] = ok
	op := map[string]interface{}{
		"summary":     summary,
		"description": description,
		"responses":   responses,
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return op
}

var (
	stringList = map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}}
	objectList = map[string]interface{}{"type": "array", "items": map[string]string{"type": "object"}}
)

// OpenAPISpec returns the OpenAPI 3.0 document for the catalog API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	readParams := []param{
		tsidParam(),
		queryParam("start", "Read start; RFC 3339 or naive local time (default: 30 days before end)", "string"),
		queryParam("end", "Read end; RFC 3339 or naive local time (default: now)", "string"),
		queryParam("tz", "Output time zone, IANA name or offset (default: machine zone)", "string"),
		queryParam("dataapi", "Raw or Corrected (default: Corrected)", "string"),
		queryParam("irregular", "Interval to report for irregular series, e.g. IrregHour", "string"),
		queryParam("metadata_only", "Return metadata without reading points", "boolean"),
	}
	seriesBody := map[string]interface{}{
		"tsid":        map[string]string{"type": "string"},
		"description": map[string]string{"type": "string"},
		"units":       map[string]string{"type": "string"},
		"start":       map[string]string{"type": "string", "format": "date-time"},
		"end":         map[string]string{"type": "string", "format": "date-time"},
		"properties":  map[string]string{"type": "object"},
		"points":      objectList,
	}
	paginated := map[string]interface{}{
		"data":        objectList,
		"total":       map[string]string{"type": "integer"},
		"page":        map[string]string{"type": "integer"},
		"limit":       map[string]string{"type": "integer"},
		"total_pages": map[string]string{"type": "integer"},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Aquarius Catalog API",
			"description": "Browse the Aquarius time series catalog and read time series",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/datatypes": map[string]interface{}{
				"get": operation("List data types", "Distinct data types in the catalog",
					[]param{
						queryParam("wildcard", "Bracket the list with *", "boolean"),
						queryParam("counts", "Annotate as \"type - count\"", "boolean"),
					},
					jsonResponse("Data types", map[string]interface{}{"dataTypes": stringList})),
			},
			"/api/intervals": map[string]interface{}{
				"get": operation("List intervals", "Distinct intervals for a data type",
					[]param{
						queryParam("datatype", "Data type filter, * for all", "string"),
						queryParam("wildcard", "Add * choices", "boolean"),
					},
					jsonResponse("Intervals", map[string]interface{}{"intervals": stringList})),
			},
			"/api/locations": map[string]interface{}{
				"get": operation("List locations", "Locations offered for a data type and interval",
					[]param{
						queryParam("datatype", "Data type filter", "string"),
						queryParam("interval", "Interval filter", "string"),
					},
					jsonResponse("Locations", map[string]interface{}{"locations": objectList, "choices": stringList})),
			},
			"/api/filters": map[string]interface{}{
				"get": operation("List input filters", "Filters offered for catalog listings", nil,
					jsonResponse("Filters", map[string]interface{}{"filters": objectList, "note": map[string]string{"type": "string"}})),
			},
			"/api/catalog": map[string]interface{}{
				"get": operation("List catalog rows", "Catalog rows matching the filters",
					[]param{
						queryParam("datatype", "Data type filter", "string"),
						queryParam("interval", "Interval filter", "string"),
						queryParam("location", "Location identifier filter value", "string"),
						queryParam("operator", "Matches, Contains, StartsWith or EndsWith", "string"),
						queryParam("page", "Page number (default: 1)", "integer"),
						queryParam("limit", "Rows per page (default: 1000)", "integer"),
					},
					jsonResponse("Catalog rows", paginated), "400"),
			},
			"/api/catalog/refresh": map[string]interface{}{
				"post": operation("Refresh catalog", "Rebuild the catalog from the Aquarius service", nil,
					jsonResponse("Datastore status", map[string]interface{}{"records": map[string]string{"type": "integer"}}), "503"),
			},
			"/api/timeseries/{tsid}": map[string]interface{}{
				"get": operation("Read time series", "Resolve a TSID against the catalog and read its points",
					readParams, jsonResponse("Time series", seriesBody), "400", "404", "409", "502", "503"),
			},
			"/api/timeseries/{tsid}/export": map[string]interface{}{
				"post": operation("Export time series", "Read a time series and store it in the export database",
					readParams, jsonResponse("Export summary", map[string]interface{}{
						"tsid":   map[string]string{"type": "string"},
						"values": map[string]string{"type": "integer"},
					}), "400", "404", "409", "503"),
			},
			"/api/exports": map[string]interface{}{
				"get": operation("List exports", "Stored time series headers",
					[]param{
						queryParam("page", "Page number (default: 1)", "integer"),
						queryParam("limit", "Headers per page (default: 100)", "integer"),
					},
					jsonResponse("Exports", paginated), "503"),
			},
			"/api/exports/{tsid}": map[string]interface{}{
				"get": operation("Get export", "A stored time series with its values",
					[]param{tsidParam()},
					jsonResponse("Stored series", map[string]interface{}{"header": map[string]string{"type": "object"}, "points": objectList}), "404", "503"),
			},
			"/api/datastore": map[string]interface{}{
				"get": operation("Datastore status", "Connection state and plugin properties", nil,
					jsonResponse("Status", map[string]interface{}{"status": map[string]string{"type": "object"}, "plugin": map[string]string{"type": "object"}})),
			},
			"/api/datastore/requirements": map[string]interface{}{
				"get": operation("Check requirements", "Evaluate @require datastore lines",
					[]param{queryParam("requirement", "Requirement line; may repeat", "string")},
					jsonResponse("Checks", map[string]interface{}{"checks": objectList}), "400"),
			},
			"/health": map[string]interface{}{
				"get": operation("Health check", "Datastore and database state", nil,
					jsonResponse("Service is up", map[string]interface{}{"status": map[string]string{"type": "string"}}), "503"),
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
