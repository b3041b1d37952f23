// Package httpclient is a small HTTP client for the collaborator sidecars
// (diarization, embedding, transcription, analysis gateway).
//
// It owns protocol concerns only: base URL resolution, default headers,
// authentication, JSON and multipart bodies, and classification of failures
// into retryable and permanent errors. Retry and circuit breaking are applied
// one level up by provider.Guard.
//
//	client := httpclient.New(httpclient.Config{
//	    BaseURL: "http://localhost:8388",
//	    Timeout: 5 * time.Minute,
//	})
//
//	var out diarizeResponse
//	err := client.DoJSON(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "/diarize",
//	    Body: &httpclient.MultipartBody{
//	        Files: []httpclient.FileField{{FieldName: "audio", Path: audioPath}},
//	    },
//	}, &out)
package httpclient
