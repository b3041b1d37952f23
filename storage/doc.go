// Package storage is the object store for uploaded audio and the speaker
// index snapshot files.
//
// Backends register themselves with RegisterFactory from their init
// functions; import them for side effects:
//
//	import _ "github.com/kbukum/speakerhub/storage/local"
//	import _ "github.com/kbukum/speakerhub/storage/s3"
//
//	storage:
//	  provider: s3
//	  s3:
//	    bucket: speakerhub
//	    region: eu-west-1
package storage
