package config

type WorkerKeyStruct struct {
	PublishGradesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PublishGradesQueue: "publish_grades_queue",
}
