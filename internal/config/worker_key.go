package config

type WorkerKeyStruct struct {
	MirrorSyncQueue string
}

var WorkerKey = &WorkerKeyStruct{
	MirrorSyncQueue: "mirror_sync_queue",
}
