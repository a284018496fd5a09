package api

import (
	"context"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geofield/internal/geocodec"
)

type DecodeInput struct {
	Body struct {
		Value    any    `json:"value" required:"true" doc:"Stored value: {geoJSON,type,address}, a bare envelope or legacy {lat,lng}"`
		Encoding string `json:"encoding,omitempty" enum:"geojson,legacy" default:"geojson" doc:"Encoding to normalise to"`
	}
}

// DecodeBody is a stored value normalised to the requested encoding.
type DecodeBody struct {
	GeoJSON string        `json:"geoJSON" doc:"Serialized shape envelope"`
	Type    string        `json:"type" doc:"Shape type"`
	Address string        `json:"address,omitempty" doc:"Address carried with the value"`
	Feature any           `json:"feature,omitempty" doc:"The shape as a GeoJSON Feature"`
	Bound   *[4]float64   `json:"bound,omitempty" doc:"Bounding box as [minLng,minLat,maxLng,maxLat]"`
	Area    float64       `json:"area,omitempty" doc:"Polygon area in square metres"`
	Kind    geocodec.Kind `json:"kind" doc:"Decoded shape kind"`
}

// RegisterCodec registers value migration routes.
func (h *APIHandler) RegisterCodec(api huma.API) {
	huma.Post(api, "/api/v1/codec/decode", h.Decode, huma.OperationTags("codec"))
}

func (h *APIHandler) Decode(ctx context.Context, input *DecodeInput) (*struct{ Body DecodeBody }, error) {
	body, err := DecodeValue(input.Body.Value, geocodec.Encoding(input.Body.Encoding))
	if err != nil {
		return nil, err
	}
	return &struct{ Body DecodeBody }{Body: body}, nil
}

// DecodeValue migrates and normalises a stored value. It is shared by the
// codec route and the codec CLI command.
func DecodeValue(value any, enc geocodec.Encoding) (DecodeBody, error) {
	if enc == "" {
		enc = geocodec.EncodingGeoJSON
	}
	raw, err := rawValue(value)
	if err != nil {
		return DecodeBody{}, err
	}

	s, err := geocodec.FromPersisted(raw)
	if err != nil {
		return DecodeBody{}, httpError(err)
	}

	var hv geocodec.HostValue
	_ = json.Unmarshal(raw, &hv)
	body := DecodeBody{Address: hv.Address, Kind: s.Kind}
	if s.IsZero() {
		return body, nil
	}

	v, err := geocodec.ToPersisted(s.Kind, s.Geometry, enc)
	if err != nil {
		return DecodeBody{}, httpError(err)
	}
	b := s.Bound()
	body.GeoJSON, body.Type = v.GeoJSON, v.Type
	body.Feature = geocodec.ToFeature(s, nil)
	body.Bound = &[4]float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
	body.Area = s.Area()
	return body, nil
}
