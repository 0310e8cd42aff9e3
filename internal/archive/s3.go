package archive

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/tessplot/internal/config"
	"github.com/dmitrijs2005/tessplot/internal/netx"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	download = netx.Download
)

// S3Archive lists pixel files in an S3 bucket and downloads them over HTTP.
type S3Archive struct {
	lister  s3.ListObjectsV2APIClient
	http    *http.Client
	bucket  string
	baseURL string
	timeout time.Duration
}

// NewS3Archive builds an S3Archive from cfg. Without an access key the
// client uses anonymous credentials, which is what the public bucket expects.
// A nil httpClient downloads with http.DefaultClient.
func NewS3Archive(ctx context.Context, cfg config.Archive, httpClient *http.Client) (*S3Archive, error) {
	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}

	// The SDK keeps its own buildable client so that settings such as
	// AWS_CA_BUNDLE can be applied to it; httpClient is used for downloads only.
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archive(client, httpClient, cfg), nil
}

func newS3Archive(lister s3.ListObjectsV2APIClient, httpClient *http.Client, cfg config.Archive) *S3Archive {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &S3Archive{
		lister:  lister,
		http:    httpClient,
		bucket:  cfg.Bucket,
		baseURL: cfg.PublicBaseURL,
		timeout: cfg.FetchTimeout,
	}
}

func (a *S3Archive) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

func (a *S3Archive) Search(ctx context.Context, target int64, sector int) ([]Product, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	prefix := KeyPrefix(target, sector)
	p := s3.NewListObjectsV2Paginator(a.lister, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})

	var products []Product
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", a.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, TargetPixelSuffix) {
				continue
			}
			products = append(products, Product{
				Target:   target,
				Sector:   sector,
				Key:      key,
				FileName: path.Base(key),
				Size:     aws.ToInt64(obj.Size),
				URL:      ObjectURL(a.baseURL, key),
			})
		}
	}

	sort.Slice(products, func(i, j int) bool { return products[i].Key < products[j].Key })
	return products, nil
}

func (a *S3Archive) Download(ctx context.Context, p Product, dst string) (int64, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	n, err := download(ctx, a.http, p.URL, dst)
	if err != nil {
		return 0, fmt.Errorf("fetch sector %d of %d: %w", p.Sector, p.Target, err)
	}
	return n, nil
}
