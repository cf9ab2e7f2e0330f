package binance

import (
	"encoding/json"
	"time"

	apperrors "github.com/menglong24/Binance-Data-Analysis/internal/errors"
	"github.com/menglong24/Binance-Data-Analysis/internal/models"
)

// Endpoint paths per metric kind. Field names vary per endpoint and are a
// fixed upstream contract; the payload structs below mirror them exactly.
const (
	klinesEndpoint           = "/fapi/v1/klines"
	fundingRateEndpoint      = "/fapi/v1/fundingRate"
	openInterestHistEndpoint = "/futures/data/openInterestHist"
	topAccountRatioEndpoint  = "/futures/data/topLongShortAccountRatio"
	topPositionRatioEndpoint = "/futures/data/topLongShortPositionRatio"
	globalRatioEndpoint      = "/futures/data/globalLongShortAccountRatio"
	basisEndpoint            = "/futures/data/basis"
)

func endpointPath(kind models.MetricKind) string {
	switch kind {
	case models.MetricOHLCV:
		return klinesEndpoint
	case models.MetricFundingRate:
		return fundingRateEndpoint
	case models.MetricOpenInterest:
		return openInterestHistEndpoint
	case models.MetricTopAccountRatio:
		return topAccountRatioEndpoint
	case models.MetricTopPositionRatio:
		return topPositionRatioEndpoint
	case models.MetricGlobalRatio:
		return globalRatioEndpoint
	case models.MetricBasis:
		return basisEndpoint
	default:
		return ""
	}
}

type openInterestRecord struct {
	Symbol               string `json:"symbol"`
	SumOpenInterest      string `json:"sumOpenInterest"`
	SumOpenInterestValue string `json:"sumOpenInterestValue"`
	Timestamp            int64  `json:"timestamp"`
}

// longShortRecord is shared by the three ratio endpoints; they return the
// same shape with different aggregation semantics.
type longShortRecord struct {
	Symbol         string `json:"symbol"`
	LongShortRatio string `json:"longShortRatio"`
	LongAccount    string `json:"longAccount"`
	ShortAccount   string `json:"shortAccount"`
	Timestamp      int64  `json:"timestamp"`
}

type basisRecord struct {
	Pair         string `json:"pair"`
	ContractType string `json:"contractType"`
	FuturesPrice string `json:"futuresPrice"`
	IndexPrice   string `json:"indexPrice"`
	Basis        string `json:"basis"`
	BasisRate    string `json:"basisRate"`
	Timestamp    int64  `json:"timestamp"`
}

type fundingRateRecord struct {
	Symbol      string `json:"symbol"`
	FundingRate string `json:"fundingRate"`
	FundingTime int64  `json:"fundingTime"`
}

// decodePage converts one endpoint response body into metric points in
// upstream order. A body that does not decode as the kind's contract shape
// is an Upstream error.
func decodePage(kind models.MetricKind, body []byte) ([]models.MetricPoint, error) {
	const op = "binance.decodePage"

	switch kind {
	case models.MetricOHLCV:
		return decodeKlines(body)

	case models.MetricOpenInterest:
		var records []openInterestRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, apperrors.Upstream(op, err, "malformed %s payload", kind)
		}
		points := make([]models.MetricPoint, 0, len(records))
		for _, r := range records {
			points = append(points, models.MetricPoint{
				Timestamp: time.UnixMilli(r.Timestamp).UTC(),
				Values:    []string{r.SumOpenInterest, r.SumOpenInterestValue},
			})
		}
		return points, nil

	case models.MetricTopAccountRatio, models.MetricTopPositionRatio, models.MetricGlobalRatio:
		var records []longShortRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, apperrors.Upstream(op, err, "malformed %s payload", kind)
		}
		points := make([]models.MetricPoint, 0, len(records))
		for _, r := range records {
			points = append(points, models.MetricPoint{
				Timestamp: time.UnixMilli(r.Timestamp).UTC(),
				Values:    []string{r.LongShortRatio, r.LongAccount, r.ShortAccount},
			})
		}
		return points, nil

	case models.MetricBasis:
		var records []basisRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, apperrors.Upstream(op, err, "malformed %s payload", kind)
		}
		points := make([]models.MetricPoint, 0, len(records))
		for _, r := range records {
			points = append(points, models.MetricPoint{
				Timestamp: time.UnixMilli(r.Timestamp).UTC(),
				Values:    []string{r.Basis, r.BasisRate},
			})
		}
		return points, nil

	case models.MetricFundingRate:
		var records []fundingRateRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, apperrors.Upstream(op, err, "malformed %s payload", kind)
		}
		points := make([]models.MetricPoint, 0, len(records))
		for _, r := range records {
			points = append(points, models.MetricPoint{
				Timestamp: time.UnixMilli(r.FundingTime).UTC(),
				Values:    []string{r.FundingRate},
			})
		}
		return points, nil

	default:
		return nil, apperrors.Upstream(op, nil, "no decoder for metric kind %q", kind)
	}
}

// decodeKlines parses the positional-array kline format:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume,
// trades, takerBuyVolume, takerBuyQuoteVolume, ignore]. Only the first six
// fields are kept.
func decodeKlines(body []byte) ([]models.MetricPoint, error) {
	const op = "binance.decodeKlines"

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperrors.Upstream(op, err, "malformed klines payload")
	}

	points := make([]models.MetricPoint, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, apperrors.Upstream(op, nil, "kline row %d has %d fields, want at least 6", i, len(row))
		}

		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, apperrors.Upstream(op, err, "kline row %d has a non-integer open time", i)
		}

		values := make([]string, 5)
		for j := 0; j < 5; j++ {
			if err := json.Unmarshal(row[j+1], &values[j]); err != nil {
				return nil, apperrors.Upstream(op, err, "kline row %d field %d is not a string", i, j+1)
			}
		}

		points = append(points, models.MetricPoint{
			Timestamp: time.UnixMilli(openTime).UTC(),
			Values:    values,
		})
	}
	return points, nil
}
