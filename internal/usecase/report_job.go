package usecase

import (
	"context"

	"MarketBrief/internal/domain/models"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/queue"
)

const ReportJobType = "report_run"

// ReportJob adapts ReportRun to the queue job contract so report runs can be
// enqueued and processed asynchronously.
type ReportJob struct {
	run    *ReportRun
	logger *applogger.Logger
}

func NewReportJob(run *ReportRun, lgr *applogger.Logger) *ReportJob {
	return &ReportJob{run: run, logger: lgr}
}

func (j *ReportJob) Name() string { return "report-run" }

func (j *ReportJob) Type() string { return ReportJobType }

func (j *ReportJob) Handle(ctx context.Context, payload interface{}) error {
	in, err := queue.ParsePayload[models.RunInput](payload)
	if err != nil {
		j.logger.Error("invalid report job payload", applogger.Error(err))
		return err
	}

	if _, err := j.run.Run(ctx, *in); err != nil {
		j.logger.Error("report job failed",
			applogger.String("ticker", in.CompanyTicker),
			applogger.Error(err))
		return err
	}
	return nil
}
