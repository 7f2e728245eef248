package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/jobs"
	"github.com/dvloznov/statement-import/internal/logger"
)

// JobHandler returns a jobs.JobHandler that imports the statement a job
// names. Import errors other than store failures are permanent: the same
// file will fail the same way on retry.
func JobHandler(im *Importer, storage StorageService) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ImportJob) error {
		log := logger.FromContext(ctx)
		log.Info().Str("gcs_uri", job.GCSURI).Str("provider", job.Provider).Msg("Processing import job")

		provider, err := domain.ParseProvider(job.Provider)
		if err != nil {
			job.ErrorCode = domain.CodeUnsupported
			return jobs.Permanent(fmt.Errorf("JobHandler: %w", err))
		}

		report, err := im.ImportFromGCS(ctx, storage, GCSRequest{
			OwnerID:  job.OwnerID,
			Provider: provider,
			GCSURI:   job.GCSURI,
			Password: job.Password,
			Options:  Options{DryRun: job.DryRun, AccountID: job.AccountID},
		})
		if report != nil {
			applyReport(job, report)
		}
		if err != nil {
			code := domain.Code(err)
			job.ErrorCode = code
			if code == domain.CodeStore {
				return err
			}
			return jobs.Permanent(err)
		}

		job.ErrorCode = ""
		return nil
	}
}

func applyReport(job *jobs.ImportJob, r *Report) {
	job.ImportID = r.ImportID
	job.Parsed = r.Parsed
	job.Skipped = r.Skipped
	job.Deduplicated = r.Deduplicated
	job.Committed = r.Committed
	job.Failed = r.Failed
}
