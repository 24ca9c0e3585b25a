package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"outlook_service/internal/app/apperr"
	"outlook_service/internal/app/model"
	"outlook_service/internal/app/store"
)

type unitGroupRequest struct {
	Occupation string `json:"occupation"`
}

type sectionRequest struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

type economicRegionRequest struct {
	Name string `json:"name"`
}

type outlookRequest struct {
	NOC                string `json:"noc"`
	EconomicRegionCode string `json:"economic_region_code"`
	Title              string `json:"title"`
	Outlook            string `json:"outlook"`
	Trends             string `json:"trends"`
	ReleaseDate        string `json:"release_date"`
	Province           string `json:"province"`
	Lang               string `json:"lang"`
	ProgramNID         *int   `json:"program_nid"`
}

func (h *Handler) putUnitGroup(c echo.Context) error {
	var req unitGroupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ug, err := h.store.UpsertUnitGroup(c.Request().Context(), c.Param("noc"), req.Occupation)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ug)
}

func (h *Handler) getUnitGroup(c echo.Context) error {
	ug, err := h.store.GetUnitGroup(c.Request().Context(), c.Param("noc"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ug)
}

func (h *Handler) deleteUnitGroup(c echo.Context) error {
	if err := h.store.DeleteUnitGroup(c.Request().Context(), c.Param("noc")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) postSection(c echo.Context) error {
	var req sectionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sec, err := h.store.AddSection(c.Request().Context(), c.Param("noc"), req.Title, req.Items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sec)
}

func (h *Handler) getSections(c echo.Context) error {
	rows, err := h.store.QuerySections(c.Request().Context(), c.Param("noc"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) putEconomicRegion(c echo.Context) error {
	var req economicRegionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	er, err := h.store.UpsertEconomicRegion(c.Request().Context(), c.Param("code"), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, er)
}

func (h *Handler) getEconomicRegion(c echo.Context) error {
	er, err := h.store.GetEconomicRegion(c.Request().Context(), c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, er)
}

func (h *Handler) listEconomicRegions(c echo.Context) error {
	rows, err := h.store.ListEconomicRegions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) deleteEconomicRegion(c echo.Context) error {
	if err := h.store.DeleteEconomicRegion(c.Request().Context(), c.Param("code")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) postProgramArea(c echo.Context) error {
	var req store.ProgramAreaInput
	if err := bind(c, &req); err != nil {
		return err
	}
	pa, err := h.store.UpsertProgramArea(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pa)
}

func (h *Handler) getProgramArea(c echo.Context) error {
	id, err := pathInt(c, "id")
	if err != nil {
		return err
	}
	pa, err := h.store.GetProgramArea(c.Request().Context(), uint(id))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pa)
}

func (h *Handler) deleteProgramArea(c echo.Context) error {
	id, err := pathInt(c, "id")
	if err != nil {
		return err
	}
	if err := h.store.DeleteProgramArea(c.Request().Context(), uint(id)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listProgramAreas(c echo.Context) error {
	rows, err := h.store.ListProgramAreas(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

// putProgram takes the catalog id from the path; a body nid is ignored.
func (h *Handler) putProgram(c echo.Context) error {
	nid, err := pathInt(c, "nid")
	if err != nil {
		return err
	}
	var req store.ProgramInput
	if err := bind(c, &req); err != nil {
		return err
	}
	req.NID = nid
	p, err := h.store.UpsertProgram(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) getProgram(c echo.Context) error {
	nid, err := pathInt(c, "nid")
	if err != nil {
		return err
	}
	p, err := h.store.GetProgram(c.Request().Context(), nid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) listPrograms(c echo.Context) error {
	var areaID uint
	if v := c.QueryParam("program_area_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return apperr.Newf(apperr.Validation, "", "program_area_id must be a positive integer, got %q", v)
		}
		areaID = uint(n)
	}
	rows, err := h.store.ListPrograms(c.Request().Context(), areaID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) deleteProgram(c echo.Context) error {
	nid, err := pathInt(c, "nid")
	if err != nil {
		return err
	}
	if err := h.store.DeleteProgram(c.Request().Context(), nid); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) postOutlook(c echo.Context) error {
	var req outlookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in := store.OutlookInput{
		NOC:                req.NOC,
		EconomicRegionCode: req.EconomicRegionCode,
		Title:              req.Title,
		Category:           req.Outlook,
		Trends:             req.Trends,
		Province:           req.Province,
		Lang:               req.Lang,
		ProgramNID:         req.ProgramNID,
	}
	if req.ReleaseDate != "" {
		d, err := parseDate("release_date", req.ReleaseDate)
		if err != nil {
			return err
		}
		in.ReleaseDate = d
	}
	o, err := h.store.RecordOutlook(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) getOutlook(c echo.Context) error {
	id, err := pathInt(c, "id")
	if err != nil {
		return err
	}
	o, err := h.store.GetOutlook(c.Request().Context(), uint(id))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

// queryOutlooks filters by noc, economic_region_code, province, lang,
// released_from and released_to, paged by limit and offset.
func (h *Handler) queryOutlooks(c echo.Context) error {
	var f model.OutlookFilter
	err := echo.QueryParamsBinder(c).
		String("noc", &f.NOC).
		String("economic_region_code", &f.EconomicRegionCode).
		String("province", &f.Province).
		String("lang", &f.Lang).
		Int("limit", &f.Limit).
		Int("offset", &f.Offset).
		BindError()
	if err != nil {
		return apperr.Wrap(apperr.Validation, "", err)
	}
	for name, dst := range map[string]**time.Time{"released_from": &f.ReleasedFrom, "released_to": &f.ReleasedTo} {
		if v := c.QueryParam(name); v != "" {
			d, err := parseDate(name, v)
			if err != nil {
				return err
			}
			*dst = &d
		}
	}
	rows, err := h.store.QueryOutlooks(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}
