package types

type DestinationType string

const (
	Stdout  DestinationType = "STDOUT"
	Parquet DestinationType = "PARQUET"
)

type WriterConfig struct {
	Type         DestinationType `json:"type" validate:"required"`
	WriterConfig any             `json:"writer"`
}
