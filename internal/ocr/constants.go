package ocr

// DefaultWorkers is the default number of concurrent recognizer slots.
const DefaultWorkers = 1
