package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pitabwire/util"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitabwire/barberdesk/client"
	"github.com/pitabwire/barberdesk/localization"
)

const (
	tracerName = "github.com/pitabwire/barberdesk/api"

	HeaderRequestID  = "X-Request-ID"
	HeaderBusinessID = "X-Business-ID"
)

type requester struct {
	invoker client.Manager
	baseURL string
	tracer  trace.Tracer
}

func newRequester(invoker client.Manager, baseURL string) requester {
	return requester{
		invoker: invoker,
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  otel.Tracer(tracerName),
	}
}

// do sends one request and returns the body of a 2xx response. Other statuses
// come back as *StatusError.
func (r requester) do(
	ctx context.Context,
	method string, path string, query url.Values,
	headers http.Header, payload any,
) ([]byte, error) {
	ctx, span := r.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	endpoint := r.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	if headers == nil {
		headers = http.Header{}
	}
	requestID := xid.New().String()
	headers.Set(HeaderRequestID, requestID)
	if lang := localization.FromContext(ctx); lang != "" {
		headers.Set("Accept-Language", lang)
	}

	log := util.Log(ctx).
		WithField("method", method).
		WithField("path", path).
		WithField("request_id", requestID)

	resp, err := r.invoker.Invoke(ctx, method, endpoint, payload, headers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Debug("api request failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := resp.ToContent(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !resp.IsSuccess() {
		statusErr := &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
		span.SetStatus(codes.Error, statusErr.Error())
		log.WithField("status", resp.StatusCode).Debug("api request rejected")
		return nil, statusErr
	}

	return body, nil
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}
