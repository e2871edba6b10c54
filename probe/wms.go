// Package probe checks whether service URLs referenced by metadata
// documents actually respond like the service they claim to be.
package probe

import (
	"context"
	"encoding/xml"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spatialworks/geocat/internal/httpclient"
)

const maxCapabilitiesBytes = 4 << 20

// BoundingBox is a WGS84 bounding box advertised by a service layer.
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Layer is one named layer from a capabilities document.
type Layer struct {
	Name string
	BBox *BoundingBox
}

// Result is the outcome of a probe. A failed probe carries Reason and
// leaves Verified false; probes never fail the caller.
type Result struct {
	Verified bool
	When     time.Time
	Layers   []Layer
	Reason   string
}

// Prober issues capabilities requests with SSRF protection and a
// shared rate limit.
type Prober struct {
	client  *httpclient.SaferClient
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// New creates a Prober. probesPerMinute bounds the request rate across
// all callers sharing the Prober; logger may be nil.
func New(client *httpclient.SaferClient, probesPerMinute int, logger *zap.SugaredLogger) *Prober {
	if probesPerMinute <= 0 {
		probesPerMinute = 30
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Prober{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(float64(probesPerMinute)/60.0), 1),
		logger:  logger,
	}
}

// CapabilitiesURL rewrites a service URL into a GetCapabilities
// request, preserving any vendor query parameters already present.
func CapabilitiesURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for key := range q {
		switch strings.ToLower(key) {
		case "service", "request", "version":
			q.Del(key)
		}
	}
	q.Set("service", "WMS")
	q.Set("request", "GetCapabilities")
	u.RawQuery = q.Encode()
	return u.String()
}

// ProbeWMS fetches and parses the capabilities document for a WMS
// endpoint. Any failure is folded into the Result reason.
func (p *Prober) ProbeWMS(ctx context.Context, rawURL string) Result {
	res := Result{When: time.Now().UTC()}

	if err := p.limiter.Wait(ctx); err != nil {
		res.Reason = "probe rate limit wait aborted: " + err.Error()
		return res
	}

	capURL := CapabilitiesURL(rawURL)
	body, err := p.fetch(ctx, capURL)
	if err != nil {
		p.logger.Debugw("wms probe failed", "url", capURL, "error", err)
		res.Reason = err.Error()
		return res
	}

	layers, err := parseCapabilities(body)
	if err != nil {
		p.logger.Debugw("wms capabilities unparseable", "url", capURL, "error", err)
		res.Reason = err.Error()
		return res
	}

	res.Verified = true
	res.Layers = layers
	return res
}

func (p *Prober) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := p.client.GetContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, errUnexpectedStatus(resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxCapabilitiesBytes))
}

type errUnexpectedStatus int

func (e errUnexpectedStatus) Error() string {
	return "capabilities request returned status " + strconv.Itoa(int(e))
}

type capLayer struct {
	Name   string     `xml:"Name"`
	Layers []capLayer `xml:"Layer"`
	// WMS 1.1.1 bounding box
	LatLon *struct {
		MinX string `xml:"minx,attr"`
		MinY string `xml:"miny,attr"`
		MaxX string `xml:"maxx,attr"`
		MaxY string `xml:"maxy,attr"`
	} `xml:"LatLonBoundingBox"`
	// WMS 1.3.0 bounding box
	Geographic *struct {
		West  string `xml:"westBoundLongitude"`
		East  string `xml:"eastBoundLongitude"`
		South string `xml:"southBoundLatitude"`
		North string `xml:"northBoundLatitude"`
	} `xml:"EX_GeographicBoundingBox"`
}

type capabilitiesDoc struct {
	XMLName    xml.Name
	Capability struct {
		Layer []capLayer `xml:"Layer"`
	} `xml:"Capability"`
}

var capabilityRoots = map[string]bool{
	"WMS_Capabilities":    true, // 1.3.0
	"WMT_MS_Capabilities": true, // 1.1.1
}

func parseCapabilities(body []byte) ([]Layer, error) {
	var doc capabilitiesDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if !capabilityRoots[doc.XMLName.Local] {
		return nil, errNotCapabilities(doc.XMLName.Local)
	}
	var out []Layer
	for _, l := range doc.Capability.Layer {
		collectLayers(l, &out)
	}
	return out, nil
}

type errNotCapabilities string

func (e errNotCapabilities) Error() string {
	return "response is not a WMS capabilities document (root " + strconv.Quote(string(e)) + ")"
}

func collectLayers(l capLayer, out *[]Layer) {
	if l.Name != "" {
		layer := Layer{Name: l.Name}
		if bb := layerBBox(l); bb != nil {
			layer.BBox = bb
		}
		*out = append(*out, layer)
	}
	for _, child := range l.Layers {
		collectLayers(child, out)
	}
}

func layerBBox(l capLayer) *BoundingBox {
	parse := func(s string) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	if l.Geographic != nil {
		w, ok1 := parse(l.Geographic.West)
		e, ok2 := parse(l.Geographic.East)
		s, ok3 := parse(l.Geographic.South)
		n, ok4 := parse(l.Geographic.North)
		if ok1 && ok2 && ok3 && ok4 {
			return &BoundingBox{MinX: w, MinY: s, MaxX: e, MaxY: n}
		}
	}
	if l.LatLon != nil {
		minx, ok1 := parse(l.LatLon.MinX)
		miny, ok2 := parse(l.LatLon.MinY)
		maxx, ok3 := parse(l.LatLon.MaxX)
		maxy, ok4 := parse(l.LatLon.MaxY)
		if ok1 && ok2 && ok3 && ok4 {
			return &BoundingBox{MinX: minx, MinY: miny, MaxX: maxx, MaxY: maxy}
		}
	}
	return nil
}
