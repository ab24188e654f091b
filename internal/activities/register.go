package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.StorePaperActivity)
	w.RegisterActivity(a.IndexPaperActivity)
	w.RegisterActivity(a.RemoveUploadActivity)
}
