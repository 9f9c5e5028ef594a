package controllers

import (
	"encoding/binary"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"

	"van_tracker/internal/config"
	"van_tracker/internal/services"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// TemplateResponse mirrors services.TemplateView but carries Geometry as
// a GeoJSON string for API output.
type TemplateResponse struct {
	ID          uint                        `json:"id"`
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	Direction   string                      `json:"direction"`
	Geometry    string                      `json:"geometry,omitempty"`
	Stops       []services.TemplateStopView `json:"stops"`
}

func toTemplateResponse(view services.TemplateView) TemplateResponse {
	jsonGeom, _ := convertWKBToGeoJSON(view.Geometry)
	return TemplateResponse{
		ID:          view.ID,
		Name:        view.Name,
		Description: view.Description,
		Direction:   view.Direction,
		Geometry:    jsonGeom,
		Stops:       view.Stops,
	}
}

// parseAndConvertGeometry parses a GeoJSON string into a geom.T and returns WKB bytes
func parseAndConvertGeometry(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	var g geom.T
	err := gjson.Unmarshal([]byte(raw), &g)
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(g, binary.LittleEndian)
}

// convertWKBToGeoJSON converts WKB bytes into a GeoJSON string
func convertWKBToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func templateService() *services.TemplateService {
	return services.NewTemplateService(config.DB)
}

// CreateTemplate persists a new route template with its ordered stop list.
func CreateTemplate(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}

	var input struct {
		Name        string               `json:"name" binding:"required"`
		Description string               `json:"description"`
		Direction   string               `json:"direction" binding:"required"`
		Geometry    string               `json:"geometry"`
		Stops       []services.StopInput `json:"stops"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("CreateTemplate: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	wkbGeom, err := parseAndConvertGeometry(input.Geometry)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
		return
	}

	view, err := templateService().Create(driver.ID, services.CreateTemplateInput{
		Name:        input.Name,
		Description: input.Description,
		Direction:   input.Direction,
		Geometry:    wkbGeom,
		Stops:       input.Stops,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": toTemplateResponse(*view)})
}

// ListTemplates returns all templates of the calling driver.
func ListTemplates(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}

	views, err := templateService().ListForDriver(driver.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	responses := make([]TemplateResponse, 0, len(views))
	for _, v := range views {
		responses = append(responses, toTemplateResponse(v))
	}
	c.JSON(http.StatusOK, gin.H{"templates": responses})
}

// GetTemplate returns a single template with stops ordered.
func GetTemplate(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}
	tID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template ID"})
		return
	}

	view, err := templateService().Get(driver.ID, uint(tID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": toTemplateResponse(*view)})
}

// UpdateTemplate applies partial metadata updates and optionally replaces
// the whole stop list.
func UpdateTemplate(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}
	tID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template ID"})
		return
	}

	var input struct {
		Name        *string               `json:"name"`
		Description *string               `json:"description"`
		Direction   *string               `json:"direction"`
		Geometry    *string               `json:"geometry"`
		Stops       *[]services.StopInput `json:"stops"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("UpdateTemplate: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := services.UpdateTemplateInput{
		Name:        input.Name,
		Description: input.Description,
		Direction:   input.Direction,
		Stops:       input.Stops,
	}
	if input.Geometry != nil {
		wkbGeom, err := parseAndConvertGeometry(*input.Geometry)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
			return
		}
		update.Geometry = &wkbGeom
	}

	view, err := templateService().Edit(driver.ID, uint(tID), update)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": toTemplateResponse(*view)})
}

// DeleteTemplate removes a template and its stops.
func DeleteTemplate(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}
	tID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid template ID"})
		return
	}

	if err := templateService().Delete(driver.ID, uint(tID)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}
