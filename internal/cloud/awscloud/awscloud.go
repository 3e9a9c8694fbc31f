// Package awscloud implements the Cloud Capability interface (§4.2) against
// real AWS services: ECS Fargate for tasks, ELBv2 for the shared L7 router,
// CloudFront for the edge distribution, and STS for identity. Idempotent
// Ensure* helpers, a describe-or-not-found convention instead of describe
// returning an error for a reaped resource, and per-workspace-derived
// deterministic naming throughout.
package awscloud

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/cloud"
)

// Client wraps the AWS service clients the Cloud Capability needs.
type Client struct {
	ecs     *ecs.Client
	elbv2   *elasticloadbalancingv2.Client
	cdn     *cloudfront.Client
	sts     *sts.Client
	cluster string
	family  string
	region  string
}

// New loads the default AWS config (environment/shared-config chain) and
// constructs the service clients.
func New(ctx context.Context, region, cluster, taskFamily string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("awscloud: load aws config: %w", err)
	}
	return &Client{
		ecs:     ecs.NewFromConfig(cfg),
		elbv2:   elasticloadbalancingv2.NewFromConfig(cfg),
		cdn:     cloudfront.NewFromConfig(cfg),
		sts:     sts.NewFromConfig(cfg),
		cluster: cluster,
		family:  taskFamily,
		region:  region,
	}, nil
}

// RunTask starts a new Fargate task from the configured family, injecting
// workspace-scoped environment variables into the first container override.
func (c *Client) RunTask(ctx context.Context, family, workspaceID string) (string, error) {
	out, err := c.ecs.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:        aws.String(c.cluster),
		TaskDefinition: aws.String(c.family),
		LaunchType:     ecstypes.LaunchTypeFargate,
		Count:          aws.Int32(1),
		Overrides: &ecstypes.TaskOverride{
			ContainerOverrides: []ecstypes.ContainerOverride{
				{
					Name: aws.String("workspace"),
					Environment: []ecstypes.KeyValuePair{
						{Name: aws.String("WORKSPACE_ID"), Value: aws.String(workspaceID)},
						{Name: aws.String("WORKSPACE_FAMILY"), Value: aws.String(family)},
						{Name: aws.String("AWS_REGION"), Value: aws.String(c.region)},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(out.Failures) > 0 {
		return "", fmt.Errorf("awscloud: run task failed: %s", aws.ToString(out.Failures[0].Reason))
	}
	if len(out.Tasks) == 0 {
		return "", fmt.Errorf("awscloud: run task returned no tasks")
	}
	return aws.ToString(out.Tasks[0].TaskArn), nil
}

// StopTask is idempotent: ECS returns success for an already-stopped task.
func (c *Client) StopTask(ctx context.Context, taskHandle string) error {
	_, err := c.ecs.StopTask(ctx, &ecs.StopTaskInput{
		Cluster: aws.String(c.cluster),
		Task:    aws.String(taskHandle),
		Reason:  aws.String("workspace stopped"),
	})
	return err
}

func (c *Client) DescribeTask(ctx context.Context, taskHandle string) (cloud.TaskDescription, error) {
	out, err := c.ecs.DescribeTasks(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(c.cluster),
		Tasks:   []string{taskHandle},
	})
	if err != nil {
		return cloud.TaskDescription{}, err
	}
	if len(out.Tasks) == 0 {
		return cloud.TaskDescription{}, cloud.ErrTaskNotFound
	}
	t := out.Tasks[0]
	desc := cloud.TaskDescription{
		Status:         cloud.TaskStatus(strings.ToLower(aws.ToString(t.LastStatus))),
		TaskDefinition: aws.ToString(t.TaskDefinitionArn),
	}
	if t.StartedAt != nil {
		desc.StartedAt = *t.StartedAt
	}
	for _, att := range t.Attachments {
		for _, d := range att.Details {
			switch aws.ToString(d.Name) {
			case "privateIPv4Address":
				desc.PrivateIP = aws.ToString(d.Value)
			case "publicIPv4Address", "networkInterfacePublicIp":
				desc.PublicIP = aws.ToString(d.Value)
			}
		}
	}
	return desc, nil
}

func (c *Client) ListRunningTasks(ctx context.Context, family string) ([]cloud.RunningTask, error) {
	list, err := c.ecs.ListTasks(ctx, &ecs.ListTasksInput{
		Cluster:       aws.String(c.cluster),
		Family:        aws.String(family),
		DesiredStatus: ecstypes.DesiredStatusRunning,
	})
	if err != nil {
		return nil, err
	}
	if len(list.TaskArns) == 0 {
		return nil, nil
	}
	desc, err := c.ecs.DescribeTasks(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(c.cluster),
		Tasks:   list.TaskArns,
	})
	if err != nil {
		return nil, err
	}
	out := make([]cloud.RunningTask, 0, len(desc.Tasks))
	for _, t := range desc.Tasks {
		rt := cloud.RunningTask{
			TaskHandle: aws.ToString(t.TaskArn),
			Status:     cloud.TaskStatus(strings.ToLower(aws.ToString(t.LastStatus))),
		}
		for _, att := range t.Attachments {
			for _, d := range att.Details {
				if aws.ToString(d.Name) == "publicIPv4Address" {
					rt.PublicIP = aws.ToString(d.Value)
				}
			}
		}
		out = append(out, rt)
	}
	return out, nil
}

// EnsureLoadBalancer discovers a shared ALB by name, or creates one with a
// default 404 fixed-response listener on port 80.
func (c *Client) EnsureLoadBalancer(ctx context.Context, vpcID string, subnetIDs []string, securityGroupID string) (cloud.LoadBalancer, error) {
	const name = "fleet-shared-router"
	existing, err := c.elbv2.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{
		Names: []string{name},
	})
	var lb elbtypes.LoadBalancer
	if err == nil && len(existing.LoadBalancers) > 0 {
		lb = existing.LoadBalancers[0]
	} else {
		created, cerr := c.elbv2.CreateLoadBalancer(ctx, &elasticloadbalancingv2.CreateLoadBalancerInput{
			Name:           aws.String(name),
			Subnets:        subnetIDs,
			SecurityGroups: []string{securityGroupID},
			Scheme:         elbtypes.LoadBalancerSchemeEnumInternetFacing,
			Type:           elbtypes.LoadBalancerTypeEnumApplication,
		})
		if cerr != nil {
			return cloud.LoadBalancer{}, cerr
		}
		if len(created.LoadBalancers) == 0 {
			return cloud.LoadBalancer{}, fmt.Errorf("awscloud: create load balancer returned none")
		}
		lb = created.LoadBalancers[0]
	}

	listeners, err := c.elbv2.DescribeListeners(ctx, &elasticloadbalancingv2.DescribeListenersInput{
		LoadBalancerArn: lb.LoadBalancerArn,
	})
	var listenerArn string
	if err == nil {
		for _, l := range listeners.Listeners {
			if aws.ToInt32(l.Port) == 80 {
				listenerArn = aws.ToString(l.ListenerArn)
				break
			}
		}
	}
	if listenerArn == "" {
		createdListener, lerr := c.elbv2.CreateListener(ctx, &elasticloadbalancingv2.CreateListenerInput{
			LoadBalancerArn: lb.LoadBalancerArn,
			Protocol:        elbtypes.ProtocolEnumHttp,
			Port:            aws.Int32(80),
			DefaultActions: []elbtypes.Action{
				{
					Type: elbtypes.ActionTypeEnumFixedResponse,
					FixedResponseConfig: &elbtypes.FixedResponseActionConfig{
						StatusCode:  aws.String("404"),
						ContentType: aws.String("text/plain"),
					},
				},
			},
		})
		if lerr != nil {
			return cloud.LoadBalancer{}, lerr
		}
		if len(createdListener.Listeners) == 0 {
			return cloud.LoadBalancer{}, fmt.Errorf("awscloud: create listener returned none")
		}
		listenerArn = aws.ToString(createdListener.Listeners[0].ListenerArn)
	}

	return cloud.LoadBalancer{
		Arn:         aws.ToString(lb.LoadBalancerArn),
		DNSName:     aws.ToString(lb.DNSName),
		ListenerArn: listenerArn,
	}, nil
}

// AttachWorkspace creates a target group for the workspace, registers the
// target IP, and inserts a path-prefix rule at a priority derived
// deterministically from the workspace id so concurrent attaches for
// distinct workspaces never collide.
func (c *Client) AttachWorkspace(ctx context.Context, workspaceID, targetIP string, targetPort int) (cloud.Attachment, error) {
	vpcID, err := c.vpcIDForRouter(ctx)
	if err != nil {
		return cloud.Attachment{}, err
	}
	tgName := targetGroupName(workspaceID)
	existingTG, _ := c.elbv2.DescribeTargetGroups(ctx, &elasticloadbalancingv2.DescribeTargetGroupsInput{Names: []string{tgName}})
	var tgArn string
	if existingTG != nil && len(existingTG.TargetGroups) > 0 {
		tgArn = aws.ToString(existingTG.TargetGroups[0].TargetGroupArn)
	} else {
		createdTG, terr := c.elbv2.CreateTargetGroup(ctx, &elasticloadbalancingv2.CreateTargetGroupInput{
			Name:       aws.String(tgName),
			Protocol:   elbtypes.ProtocolEnumHttp,
			Port:       aws.Int32(int32(targetPort)),
			VpcId:      aws.String(vpcID),
			TargetType: elbtypes.TargetTypeEnumIp,
		})
		if terr != nil {
			return cloud.Attachment{}, terr
		}
		if len(createdTG.TargetGroups) == 0 {
			return cloud.Attachment{}, fmt.Errorf("awscloud: create target group returned none")
		}
		tgArn = aws.ToString(createdTG.TargetGroups[0].TargetGroupArn)
	}

	if _, err := c.elbv2.RegisterTargets(ctx, &elasticloadbalancingv2.RegisterTargetsInput{
		TargetGroupArn: aws.String(tgArn),
		Targets:        []elbtypes.TargetDescription{{Id: aws.String(targetIP), Port: aws.Int32(int32(targetPort))}},
	}); err != nil {
		return cloud.Attachment{}, err
	}

	listenerArn, err := c.sharedListenerArn(ctx)
	if err != nil {
		return cloud.Attachment{}, err
	}
	pathPrefix := workspaceID
	priority := rulePriority(workspaceID)
	ruleArn, err := c.ensurePathRule(ctx, listenerArn, pathPrefix, tgArn, priority)
	if err != nil {
		return cloud.Attachment{}, err
	}

	return cloud.Attachment{TargetGroupArn: tgArn, PathPrefix: pathPrefix, RuleArn: ruleArn}, nil
}

func (c *Client) ensurePathRule(ctx context.Context, listenerArn, pathPrefix, tgArn string, priority int32) (string, error) {
	existing, err := c.elbv2.DescribeRules(ctx, &elasticloadbalancingv2.DescribeRulesInput{ListenerArn: aws.String(listenerArn)})
	if err == nil {
		for _, r := range existing.Rules {
			for _, cond := range r.Conditions {
				if aws.ToString(cond.Field) == "path-pattern" {
					for _, v := range cond.Values {
						if v == "/"+pathPrefix+"/*" {
							return aws.ToString(r.RuleArn), nil
						}
					}
				}
			}
		}
	}
	created, err := c.elbv2.CreateRule(ctx, &elasticloadbalancingv2.CreateRuleInput{
		ListenerArn: aws.String(listenerArn),
		Priority:    aws.Int32(priority),
		Conditions: []elbtypes.RuleCondition{
			{
				Field:  aws.String("path-pattern"),
				Values: []string{"/" + pathPrefix + "/*"},
			},
		},
		Actions: []elbtypes.Action{
			{Type: elbtypes.ActionTypeEnumForward, TargetGroupArn: aws.String(tgArn)},
		},
	})
	if err != nil {
		return "", err
	}
	if len(created.Rules) == 0 {
		return "", fmt.Errorf("awscloud: create rule returned none")
	}
	return aws.ToString(created.Rules[0].RuleArn), nil
}

// DetachWorkspace deletes the listener rule and target group; a detach for
// a workspace with no rule is a no-op.
func (c *Client) DetachWorkspace(ctx context.Context, workspaceID string) error {
	listenerArn, err := c.sharedListenerArn(ctx)
	if err != nil {
		return err
	}
	existing, err := c.elbv2.DescribeRules(ctx, &elasticloadbalancingv2.DescribeRulesInput{ListenerArn: aws.String(listenerArn)})
	if err == nil {
		for _, r := range existing.Rules {
			for _, cond := range r.Conditions {
				if aws.ToString(cond.Field) == "path-pattern" {
					for _, v := range cond.Values {
						if v == "/"+workspaceID+"/*" {
							_, _ = c.elbv2.DeleteRule(ctx, &elasticloadbalancingv2.DeleteRuleInput{RuleArn: r.RuleArn})
						}
					}
				}
			}
		}
	}
	tgName := targetGroupName(workspaceID)
	tg, err := c.elbv2.DescribeTargetGroups(ctx, &elasticloadbalancingv2.DescribeTargetGroupsInput{Names: []string{tgName}})
	if err == nil && len(tg.TargetGroups) > 0 {
		_, _ = c.elbv2.DeleteTargetGroup(ctx, &elasticloadbalancingv2.DeleteTargetGroupInput{TargetGroupArn: tg.TargetGroups[0].TargetGroupArn})
	}
	return nil
}

// EnsureCDN creates a single HTTPS-terminating distribution with caching
// disabled and all methods (including the ones WebSocket upgrades need)
// allowed, or returns the existing one found by origin domain.
func (c *Client) EnsureCDN(ctx context.Context, routerDNSName string) (cloud.Distribution, error) {
	list, err := c.cdn.ListDistributions(ctx, &cloudfront.ListDistributionsInput{})
	if err == nil && list.DistributionList != nil {
		for _, item := range list.DistributionList.Items {
			if item.Origins != nil {
				for _, origin := range item.Origins.Items {
					if aws.ToString(origin.DomainName) == routerDNSName {
						return cloud.Distribution{DistributionID: aws.ToString(item.Id), Domain: aws.ToString(item.DomainName)}, nil
					}
				}
			}
		}
	}
	callerRef := "fleet-edge-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	created, err := c.cdn.CreateDistribution(ctx, &cloudfront.CreateDistributionInput{
		DistributionConfig: &cftypes.DistributionConfig{
			CallerReference: aws.String(callerRef),
			Comment:         aws.String("fleet shared edge"),
			Enabled:         aws.Bool(true),
			Origins: &cftypes.Origins{
				Quantity: aws.Int32(1),
				Items: []cftypes.Origin{
					{
						Id:         aws.String("router"),
						DomainName: aws.String(routerDNSName),
						CustomOriginConfig: &cftypes.CustomOriginConfig{
							HTTPPort:             aws.Int32(80),
							HTTPSPort:            aws.Int32(443),
							OriginProtocolPolicy: cftypes.OriginProtocolPolicyHttpOnly,
						},
					},
				},
			},
			DefaultCacheBehavior: &cftypes.DefaultCacheBehavior{
				TargetOriginId:       aws.String("router"),
				ViewerProtocolPolicy: cftypes.ViewerProtocolPolicyRedirectToHttps,
				AllowedMethods: &cftypes.AllowedMethods{
					Quantity: aws.Int32(7),
					Items: []cftypes.Method{
						cftypes.MethodGet, cftypes.MethodHead, cftypes.MethodOptions,
						cftypes.MethodPut, cftypes.MethodPost, cftypes.MethodPatch, cftypes.MethodDelete,
					},
					CachedMethods: &cftypes.CachedMethods{
						Quantity: aws.Int32(2),
						Items:    []cftypes.Method{cftypes.MethodGet, cftypes.MethodHead},
					},
				},
				MinTTL: aws.Int64(0),
				ForwardedValues: &cftypes.ForwardedValues{
					QueryString: aws.Bool(true),
					Cookies:     &cftypes.CookiePreference{Forward: cftypes.ItemSelectionAll},
					Headers: &cftypes.Headers{
						Quantity: aws.Int32(1),
						Items:    []string{"*"},
					},
				},
			},
		},
	})
	if err != nil {
		return cloud.Distribution{}, err
	}
	if created.Distribution == nil {
		return cloud.Distribution{}, fmt.Errorf("awscloud: create distribution returned none")
	}
	return cloud.Distribution{
		DistributionID: aws.ToString(created.Distribution.Id),
		Domain:         aws.ToString(created.Distribution.DomainName),
	}, nil
}

func (c *Client) Identity(ctx context.Context) (cloud.Identity, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return cloud.Identity{}, err
	}
	return cloud.Identity{AccountID: aws.ToString(out.Account), Region: c.region}, nil
}

func targetGroupName(workspaceID string) string {
	name := "ws-" + workspaceID
	if len(name) > 32 {
		name = name[:32]
	}
	return name
}

// rulePriority derives a stable [1, 50000) ALB rule priority from the
// workspace id so concurrent attaches for distinct workspaces never race
// on the same priority slot.
func rulePriority(workspaceID string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(workspaceID))
	return int32(h.Sum32()%49999) + 1
}

func (c *Client) vpcIDForRouter(ctx context.Context) (string, error) {
	lbs, err := c.elbv2.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{Names: []string{"fleet-shared-router"}})
	if err != nil || len(lbs.LoadBalancers) == 0 {
		return "", fmt.Errorf("awscloud: shared router not found, call EnsureLoadBalancer first")
	}
	return aws.ToString(lbs.LoadBalancers[0].VpcId), nil
}

func (c *Client) sharedListenerArn(ctx context.Context) (string, error) {
	lbs, err := c.elbv2.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{Names: []string{"fleet-shared-router"}})
	if err != nil || len(lbs.LoadBalancers) == 0 {
		return "", fmt.Errorf("awscloud: shared router not found, call EnsureLoadBalancer first")
	}
	listeners, err := c.elbv2.DescribeListeners(ctx, &elasticloadbalancingv2.DescribeListenersInput{LoadBalancerArn: lbs.LoadBalancers[0].LoadBalancerArn})
	if err != nil || len(listeners.Listeners) == 0 {
		return "", fmt.Errorf("awscloud: shared listener not found")
	}
	return aws.ToString(listeners.Listeners[0].ListenerArn), nil
}

var _ cloud.Capability = (*Client)(nil)
