package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"habitlog-api/domain"
)

const putRecordMaxSize = 64 << 10

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store RecordStore, catalog []domain.FixedTask, logger *log.Logger) {
	e.GET("/api/records/:date", getRecord(store, logger))
	e.PUT("/api/records/:date", putRecord(store))
	e.GET("/api/records", getRecords(store))
	e.GET("/api/history", getHistory(store))
	e.GET("/api/heatmap", getHeatmap(store))
	e.GET("/api/stats", getStats(store, catalog))
	e.GET("/api/tasks", getCatalog(catalog))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// storageStatus maps a storage failure to the response status of the
// operation that hit it.
func storageStatus(err error) int {
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func getRecord(store RecordStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newRecordRequestMetrics(ctx, logger)
		if spanCtx != nil {
			req := c.Request().WithContext(spanCtx)
			c.SetRequest(req)
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		date := c.Param("date")
		fetchStart := time.Now()
		rec, persisted, fetchErr := store.GetByDate(ctx, date)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(storageStatus(fetchErr), fetchErr.Error())
			return err
		}
		metrics.SetSynthesized(!persisted)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, rec)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func putRecord(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		lr := io.LimitReader(c.Request().Body, putRecordMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var rec domain.DayRecord
		if err := dec.Decode(&rec); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		date := c.Param("date")
		if rec.Date == "" {
			rec.Date = date
		}
		if rec.Date != date {
			return c.String(http.StatusBadRequest, "record date does not match path")
		}

		if err := store.Put(ctx, rec); err != nil {
			c.Logger().Error(err)
			return c.String(storageStatus(err), err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getRecords(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		records, err := store.GetAll(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(storageStatus(err), err.Error())
		}
		return c.JSON(http.StatusOK, records)
	}
}

func getHistory(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		exclude := c.QueryParam("exclude")
		if exclude == "" {
			exclude = time.Now().Format("2006-01-02")
		}
		records, err := store.GetAllExcluding(c.Request().Context(), exclude)
		if err != nil {
			c.Logger().Error(err)
			return c.String(storageStatus(err), err.Error())
		}
		return c.JSON(http.StatusOK, records)
	}
}

func getHeatmap(store RecordStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		records, err := store.GetAll(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(storageStatus(err), err.Error())
		}
		buckets := domain.Heatmap(records, c.QueryParam("from"), c.QueryParam("to"))
		return c.JSON(http.StatusOK, buckets)
	}
}

func getStats(store RecordStore, catalog []domain.FixedTask) echo.HandlerFunc {
	return func(c echo.Context) error {
		records, err := store.GetAll(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(storageStatus(err), err.Error())
		}
		return c.JSON(http.StatusOK, domain.TaskStats(records, catalog))
	}
}

func getCatalog(catalog []domain.FixedTask) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, catalog)
	}
}
