// Package aws implements the EC2 compute provider for reaper.
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/reaper/internal/provider"
	"github.com/yairfalse/reaper/pkg/instance"
)

// Provider terminates EC2 instances.
type Provider struct {
	region    string
	ec2Client EC2API
}

// Config holds AWS provider configuration.
type Config struct {
	Region  string
	Profile string
}

// New creates a new AWS provider from the default credential chain.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewWithClient(awsCfg.Region, ec2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a provider around an existing EC2 client.
func NewWithClient(region string, client EC2API) *Provider {
	return &Provider{region: region, ec2Client: client}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "aws"
}

// Region returns the configured region.
func (p *Provider) Region() string {
	return p.region
}

// Describe fetches snapshots for ids in one batch call, following pagination.
func (p *Provider) Describe(ctx context.Context, ids []instance.ID) (map[instance.ID]instance.Snapshot, error) {
	snapshots := make(map[instance.ID]instance.Snapshot, len(ids))
	if len(ids) == 0 {
		return snapshots, nil
	}

	var nextToken *string
	for {
		output, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: ids,
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", classify(err))
		}

		for _, reservation := range output.Reservations {
			for _, inst := range reservation.Instances {
				snapshots[aws.ToString(inst.InstanceId)] = convertInstance(inst)
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	log.Debug().
		Int("requested", len(ids)).
		Int("found", len(snapshots)).
		Str("region", p.region).
		Msg("described instances")

	return snapshots, nil
}

// Terminate issues TerminateInstances for a single instance.
func (p *Provider) Terminate(ctx context.Context, id instance.ID) (instance.Transition, error) {
	output, err := p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return instance.Transition{}, fmt.Errorf("terminate instance %s: %w", id, classify(err))
	}

	change, ok := findStateChange(output.TerminatingInstances, id)
	if !ok {
		return instance.Transition{}, fmt.Errorf("terminate instance %s: no state change returned", id)
	}

	return instance.Transition{
		Previous: stateName(change.PreviousState),
		Current:  stateName(change.CurrentState),
	}, nil
}

func findStateChange(changes []ec2types.InstanceStateChange, id string) (ec2types.InstanceStateChange, bool) {
	for _, c := range changes {
		if aws.ToString(c.InstanceId) == id {
			return c, true
		}
	}
	// Single-id calls return a single entry; accept it even without an id.
	if len(changes) == 1 && changes[0].InstanceId == nil {
		return changes[0], true
	}
	return ec2types.InstanceStateChange{}, false
}

func convertInstance(inst ec2types.Instance) instance.Snapshot {
	s := instance.Snapshot{
		State:        stateName(inst.State),
		InstanceType: string(inst.InstanceType),
		LaunchTime:   inst.LaunchTime,
	}
	if len(inst.Tags) > 0 {
		s.Tags = make(map[string]string, len(inst.Tags))
		for _, tag := range inst.Tags {
			s.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
	}
	return s
}

func stateName(state *ec2types.InstanceState) instance.State {
	if state == nil || state.Name == "" {
		return instance.StateUnknown
	}
	return instance.State(state.Name)
}

// classify turns smithy API errors into *provider.APIError; anything else
// (transport failures, cancellations) is returned unchanged.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &provider.APIError{
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
			Err:     err,
		}
	}
	return err
}
