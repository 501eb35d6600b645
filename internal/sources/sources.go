// Package sources retrieves the four remote documents a report is built
// from: the aggregator's federation map and process listing, the process
// specification, and a backend's own process listing.
//
// Every failure is returned as *errors.DataUnavailableError naming the
// document; transport, parse and validation causes are wrapped inside.
package sources

import (
	"context"
	"strings"

	"github.com/agentstation/procreport/internal/transport"
	"github.com/agentstation/procreport/internal/validation"
	"github.com/agentstation/procreport/pkg/constants"
	"github.com/agentstation/procreport/pkg/errors"
	"github.com/agentstation/procreport/pkg/logging"
	"github.com/agentstation/procreport/pkg/processes"
)

// Document names used in errors and logs.
const (
	DocFederation          = "federation"
	DocAggregatorProcesses = "aggregator processes"
	DocSpecification       = "specification"
	DocBackendProcesses    = "backend processes"
)

// Client fetches and validates remote documents.
type Client struct {
	transport *transport.Client
	validator *validation.Validator
}

// New creates a sources client.
func New(t *transport.Client, v *validation.Validator) *Client {
	return &Client{transport: t, validator: v}
}

// Federation fetches the aggregator root document and returns its
// federation map.
func (c *Client) Federation(ctx context.Context, aggregatorURL string) (processes.Federation, error) {
	var caps processes.Capabilities
	if err := c.fetch(ctx, DocFederation, strings.TrimRight(aggregatorURL, "/"), validation.Capabilities, &caps); err != nil {
		return nil, err
	}
	if len(caps.Federation) == 0 {
		return nil, errors.NewDataUnavailableError("", DocFederation, "no federation members listed", nil)
	}
	return caps.Federation, nil
}

// AggregatorProcesses fetches the aggregator's merged process listing.
func (c *Client) AggregatorProcesses(ctx context.Context, aggregatorURL string) (processes.List, error) {
	return c.envelope(ctx, DocAggregatorProcesses, processesURL(aggregatorURL))
}

// BackendProcesses fetches a backend's own process listing.
func (c *Client) BackendProcesses(ctx context.Context, backendURL string) (processes.List, error) {
	return c.envelope(ctx, DocBackendProcesses, processesURL(backendURL))
}

// SpecProcesses fetches the canonical specification, a bare process array.
func (c *Client) SpecProcesses(ctx context.Context, specURL string) (processes.List, error) {
	var list processes.List
	if err := c.fetch(ctx, DocSpecification, specURL, validation.ProcessArray, &list); err != nil {
		return nil, err
	}
	return nonEmpty(DocSpecification, list)
}

func (c *Client) envelope(ctx context.Context, document, url string) (processes.List, error) {
	var env processes.Envelope
	if err := c.fetch(ctx, document, url, validation.ProcessEnvelope, &env); err != nil {
		return nil, err
	}
	return nonEmpty(document, env.Processes)
}

// fetch retrieves url, validates it as shape and decodes it into target.
func (c *Client) fetch(ctx context.Context, document, url string, shape validation.Document, target any) error {
	logger := logging.FromContext(ctx)
	logger.Debug().Str("document", document).Str("url", url).Msg("Fetching document")

	body, err := c.transport.Get(ctx, url)
	if err != nil {
		return errors.NewDataUnavailableError("", document, "", err)
	}

	if c.validator != nil {
		if err := c.validator.Validate(shape, body); err != nil {
			return errors.NewDataUnavailableError("", document, "malformed document", err)
		}
	}

	if err := transport.DecodeJSON(body, url, target); err != nil {
		return errors.NewDataUnavailableError("", document, "malformed document", err)
	}

	logger.Debug().Str("document", document).Int("bytes", len(body)).Msg("Fetched document")
	return nil
}

func nonEmpty(document string, list processes.List) (processes.List, error) {
	if len(list) == 0 {
		return nil, errors.NewDataUnavailableError("", document, "no processes listed", nil)
	}
	return list, nil
}

func processesURL(base string) string {
	return strings.TrimRight(base, "/") + constants.ProcessesPath
}
