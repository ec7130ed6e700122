// Package objstore implements the object-store backend (spec §4.5): S3
// control-plane operations (existence checks, listings, multipart cleanup,
// storage-class transitions) go through aws-sdk-go-v2; the actual data
// transfer into and out of the bucket stays on the provider CLI
// subprocess, exactly as spec §4.5 names it ("via the provider CLI").
package objstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/qqa112811/palhm/internal/backend"
	"github.com/qqa112811/palhm/internal/backend/localfs"
	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

const collisionRetries = 2 // spec §9 open question: fixed at two, not configurable

// parseLimit parses a "nb-copy-limit"/"root-size-limit" value: either a
// decimal string or the literal "Infinity", which maps to 0 (unbounded,
// per backend.Quota's convention).
func parseLimit(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	if s == "Infinity" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", palhmerr.ErrInvalidConfig, err)
	}
	return n, nil
}

// Config is the "backend-param" fragment for an object-store backend
// (spec §6).
type Config struct {
	Bucket    string
	Root      string
	Profile   string
	MaxCopies int64
	MaxBytes  int64
	SCSink    string
	SCRot     string
}

// Backend is one open run's worth of object-store state.
type Backend struct {
	cfg    Config
	client *s3.Client
	prefix string

	mu       sync.Mutex
	sinkKeys []string // full object keys written this run
}

// Ctor builds a Backend from its config fragment.
func Ctor(param map[string]any) (core.Backend, error) {
	cfg := Config{}

	bucket, _ := param["bucket"].(string)
	if bucket == "" {
		return nil, fmt.Errorf(`%w: object-store backend requires "bucket"`, palhmerr.ErrInvalidConfig)
	}
	cfg.Bucket = bucket

	root, _ := param["root"].(string)
	cfg.Root = strings.Trim(root, "/")

	cfg.Profile, _ = param["profile"].(string)
	cfg.SCSink, _ = param["sink-storage-class"].(string)
	cfg.SCRot, _ = param["rot-storage-class"].(string)

	nbCopyLimit, err := parseLimit(param["nb-copy-limit"])
	if err != nil {
		return nil, fmt.Errorf("nb-copy-limit: %w", err)
	}
	cfg.MaxCopies = nbCopyLimit

	rootSizeLimit, err := parseLimit(param["root-size-limit"])
	if err != nil {
		return nil, fmt.Errorf("root-size-limit: %w", err)
	}
	cfg.MaxBytes = rootSizeLimit

	ctx := context.Background()
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Profile != "" {
		optFns = append(optFns, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("%w: object-store: loading AWS config: %s", palhmerr.ErrInvalidConfig, err)
	}

	return &Backend{cfg: cfg, client: s3.NewFromConfig(awsCfg)}, nil
}

func (b *Backend) rootKey(prefix string) string {
	if b.cfg.Root == "" {
		return prefix
	}
	return b.cfg.Root + "/" + prefix
}

// Open probes the proposed prefix for collisions, generating a new one and
// sleeping a second on the first collision, failing fatally on the second
// (spec §4.5, §9).
func (b *Backend) Open(ctx *core.GlobalContext) error {
	prefix := localfs.NewCopyID(time.Now())

	for attempt := 0; ; attempt++ {
		exists, err := b.prefixExists(ctx.Context(), prefix)
		if err != nil {
			return err
		}
		if !exists {
			b.prefix = prefix
			return nil
		}
		if attempt >= collisionRetries-1 {
			return fmt.Errorf("%w: %s/%s", palhmerr.ErrPreExistingTarget, b.cfg.Bucket, b.rootKey(prefix))
		}
		time.Sleep(time.Second)
		prefix = localfs.NewCopyID(time.Now()) + "-" + uuid.NewString()[:8]
	}
}

func (b *Backend) prefixExists(ctx context.Context, prefix string) (bool, error) {
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.cfg.Bucket),
		Prefix:  aws.String(b.rootKey(prefix) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("%w: object-store list: %s", palhmerr.ErrAPIFailure, err)
	}
	return len(out.Contents) > 0, nil
}

// Sink returns the Exec that pipes stdin to the object via the provider
// CLI (spec §4.5).
func (b *Backend) Sink(ctx *core.GlobalContext, obj *core.BackupObject) (core.Exec, error) {
	key := path.Join(b.rootKey(b.prefix), obj.Path)
	uri := fmt.Sprintf("s3://%s/%s", b.cfg.Bucket, key)

	argv := []string{"aws", "s3", "cp", "-", uri}
	if b.cfg.SCSink != "" {
		argv = append(argv, "--storage-class", b.cfg.SCSink)
	}
	if obj.AllocSize != nil {
		argv = append(argv, fmt.Sprintf("--expected-size=%d", *obj.AllocSize))
	}
	if b.cfg.Profile != "" {
		argv = append(argv, "--profile", b.cfg.Profile)
	}

	e := core.NewExec(argv, nil)

	b.mu.Lock()
	b.sinkKeys = append(b.sinkKeys, key)
	b.mu.Unlock()

	return e, nil
}

// Rotate runs the shared rotation algorithm, then fans out a storage-class
// transition across this run's sunk objects if rot-storage-class differs
// from sink-storage-class (spec §4.5).
func (b *Backend) Rotate(ctx *core.GlobalContext) error {
	usage, err := b.usageInfo(ctx.Context())
	if err != nil {
		return err
	}
	excl := map[string]struct{}{b.prefix: {}}
	toDelete := backend.PlanRotation(usage, backend.Quota{MaxCopies: b.cfg.MaxCopies, MaxBytes: b.cfg.MaxBytes}, excl)
	if err := b.rmRecursive(ctx, toDelete); err != nil {
		return err
	}

	if b.cfg.SCRot == "" || b.cfg.SCRot == b.cfg.SCSink {
		return nil
	}

	b.mu.Lock()
	keys := append([]string(nil), b.sinkKeys...)
	b.mu.Unlock()

	sem := workerSemaphore(ctx)
	g, gctx := errgroup.WithContext(ctx.Context())
	for _, key := range keys {
		key := key
		if sem != nil {
			if err := sem.Acquire(gctx, 1); err != nil {
				break
			}
		}
		g.Go(func() error {
			if sem != nil {
				defer sem.Release(1)
			}
			return b.transitionStorageClass(gctx, key)
		})
	}
	return g.Wait()
}

func (b *Backend) transitionStorageClass(ctx context.Context, key string) error {
	copySrc := b.cfg.Bucket + "/" + key
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(b.cfg.Bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(copySrc),
		StorageClass:      types.StorageClass(b.cfg.SCRot),
		MetadataDirective: types.MetadataDirectiveCopy,
	})
	if err != nil {
		return fmt.Errorf("%w: object-store storage-class transition %s: %s", palhmerr.ErrAPIFailure, key, err)
	}
	return nil
}

// Rollback deletes everything under the current prefix (spec §4.5).
func (b *Backend) Rollback(ctx *core.GlobalContext) error {
	return b.rmRecursive(ctx, []string{b.prefix})
}

// Close aborts any outstanding multipart uploads under the current
// prefix. Only the per-upload abort is a deliberate swallow (spec §4.5,
// §7); a failure to enumerate the uploads in the first place is an
// api-failure like any other listing error, not the named swallow.
func (b *Backend) Close(ctx *core.GlobalContext) error {
	out, err := b.client.ListMultipartUploads(ctx.Context(), &s3.ListMultipartUploadsInput{
		Bucket: aws.String(b.cfg.Bucket),
		Prefix: aws.String(b.rootKey(b.prefix)),
	})
	if err != nil {
		return fmt.Errorf("%w: object-store close: listing multipart uploads: %s", palhmerr.ErrAPIFailure, err)
	}

	sem := workerSemaphore(ctx)
	g, gctx := errgroup.WithContext(ctx.Context())
	for _, up := range out.Uploads {
		up := up
		if sem != nil {
			if err := sem.Acquire(gctx, 1); err != nil {
				break
			}
		}
		g.Go(func() error {
			if sem != nil {
				defer sem.Release(1)
			}
			_, err := b.client.AbortMultipartUpload(gctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(b.cfg.Bucket),
				Key:      up.Key,
				UploadId: up.UploadId,
			})
			if err != nil {
				ctx.Logger.Warn("object-store close: abort multipart upload failed", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

func (b *Backend) String() string { return fmt.Sprintf("object-store(%s/%s)", b.cfg.Bucket, b.cfg.Root) }

// usageInfo is _fs_usage_info for the object store (spec §4.5): paginated
// listing under root, aggregated by top-level child prefix.
func (b *Backend) usageInfo(ctx context.Context) ([]backend.Usage, error) {
	totals := map[string]int64{}
	rootPrefix := b.cfg.Root
	if rootPrefix != "" {
		rootPrefix += "/"
	}

	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.cfg.Bucket),
			Prefix:            aws.String(rootPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: object-store usage list: %s", palhmerr.ErrAPIFailure, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasPrefix(key, rootPrefix) {
				return nil, fmt.Errorf("%w: object-store usage: key %q not under root", palhmerr.ErrAPIFailure, key)
			}
			rest := strings.TrimPrefix(key, rootPrefix)
			top := strings.SplitN(rest, "/", 2)[0]
			totals[top] += aws.ToInt64(obj.Size)
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}

	usage := make([]backend.Usage, 0, len(totals))
	for id, sz := range totals {
		usage = append(usage, backend.Usage{ID: id, Bytes: sz})
	}
	return usage, nil
}

func (b *Backend) rmRecursive(ctx *core.GlobalContext, ids []string) error {
	sem := workerSemaphore(ctx)
	g, gctx := errgroup.WithContext(ctx.Context())
	for _, id := range ids {
		id := id
		if sem != nil {
			if err := sem.Acquire(gctx, 1); err != nil {
				break
			}
		}
		g.Go(func() error {
			if sem != nil {
				defer sem.Release(1)
			}
			return b.rmPrefix(ctx, id)
		})
	}
	return g.Wait()
}

// workerSemaphore mirrors engine.runLoop's pool sizing (spec §5): nil
// when the pool is unbounded, sized to NBWorkers otherwise.
func workerSemaphore(ctx *core.GlobalContext) *semaphore.Weighted {
	if ctx.Unbounded {
		return nil
	}
	return semaphore.NewWeighted(int64(ctx.NBWorkers))
}

// rmPrefix issues a recursive delete via the provider CLI, reusing the
// caller's GlobalContext so verbosity gating and worker-pool settings stay
// consistent across parallel rm invocations.
func (b *Backend) rmPrefix(ctx *core.GlobalContext, prefix string) error {
	fullPrefix := b.rootKey(prefix)
	argv := []string{"aws", "s3", "rm", fmt.Sprintf("s3://%s/%s", b.cfg.Bucket, fullPrefix), "--recursive"}
	if b.cfg.Profile != "" {
		argv = append(argv, "--profile", b.cfg.Profile)
	}
	e := core.NewExec(argv, nil)
	if err := e.Run(ctx); err != nil {
		if errors.Is(err, palhmerr.ErrBadExit) {
			return fmt.Errorf("%w: object-store rm %s: %s", palhmerr.ErrAPIFailure, fullPrefix, err)
		}
		return err
	}
	return nil
}
