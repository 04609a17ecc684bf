package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// CycleServiceClient calls CycleService over the Connect protocol with JSON
// bodies.
type CycleServiceClient struct {
	processContributions *connect.Client[RunRequest, ContributionRunResponse]
	processPayouts       *connect.Client[RunRequest, PayoutRunResponse]
	chargeContribution   *connect.Client[ChargeContributionRequest, ChargeContributionResponse]
	getCycleStatus       *connect.Client[GetCycleStatusRequest, CycleStatusResponse]
	resetRetryCount      *connect.Client[ResetRetryCountRequest, ResetRetryCountResponse]
}

// NewCycleServiceClient constructs a client for the service at baseURL.
func NewCycleServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *CycleServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec())}, opts...)
	return &CycleServiceClient{
		processContributions: connect.NewClient[RunRequest, ContributionRunResponse](httpClient, baseURL+ProcessContributionsProcedure, opts...),
		processPayouts:       connect.NewClient[RunRequest, PayoutRunResponse](httpClient, baseURL+ProcessPayoutsProcedure, opts...),
		chargeContribution:   connect.NewClient[ChargeContributionRequest, ChargeContributionResponse](httpClient, baseURL+ChargeContributionProcedure, opts...),
		getCycleStatus:       connect.NewClient[GetCycleStatusRequest, CycleStatusResponse](httpClient, baseURL+GetCycleStatusProcedure, opts...),
		resetRetryCount:      connect.NewClient[ResetRetryCountRequest, ResetRetryCountResponse](httpClient, baseURL+ResetRetryCountProcedure, opts...),
	}
}

func (c *CycleServiceClient) ProcessContributions(ctx context.Context, req *connect.Request[RunRequest]) (*connect.Response[ContributionRunResponse], error) {
	return c.processContributions.CallUnary(ctx, req)
}

func (c *CycleServiceClient) ProcessPayouts(ctx context.Context, req *connect.Request[RunRequest]) (*connect.Response[PayoutRunResponse], error) {
	return c.processPayouts.CallUnary(ctx, req)
}

func (c *CycleServiceClient) ChargeContribution(ctx context.Context, req *connect.Request[ChargeContributionRequest]) (*connect.Response[ChargeContributionResponse], error) {
	return c.chargeContribution.CallUnary(ctx, req)
}

func (c *CycleServiceClient) GetCycleStatus(ctx context.Context, req *connect.Request[GetCycleStatusRequest]) (*connect.Response[CycleStatusResponse], error) {
	return c.getCycleStatus.CallUnary(ctx, req)
}

func (c *CycleServiceClient) ResetRetryCount(ctx context.Context, req *connect.Request[ResetRetryCountRequest]) (*connect.Response[ResetRetryCountResponse], error) {
	return c.resetRetryCount.CallUnary(ctx, req)
}
