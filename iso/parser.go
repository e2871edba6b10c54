package iso

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/spatialworks/geocat/errors"
)

// Element tags below carry local names only; encoding/xml then matches
// them in any namespace, which covers the gmd/gco prefix variants (and
// the occasional srv element) seen in the wild.

type charString struct {
	CharacterString string `xml:"CharacterString"`
	Anchor          string `xml:"Anchor"`
}

func (c charString) text() string {
	if s := strings.TrimSpace(c.CharacterString); s != "" {
		return s
	}
	return strings.TrimSpace(c.Anchor)
}

type codeValue struct {
	CodeListValue string `xml:"codeListValue,attr"`
	Value         string `xml:",chardata"`
}

func (c codeValue) text() string {
	if s := strings.TrimSpace(c.CodeListValue); s != "" {
		return s
	}
	return strings.TrimSpace(c.Value)
}

type dateOrDateTime struct {
	Date     string `xml:"Date"`
	DateTime string `xml:"DateTime"`
}

func (d dateOrDateTime) text() string {
	if s := strings.TrimSpace(d.Date); s != "" {
		return s
	}
	return strings.TrimSpace(d.DateTime)
}

type xmlCIDate struct {
	Date struct {
		Date     dateOrDateTime `xml:"date"`
		DateType struct {
			Code codeValue `xml:"CI_DateTypeCode"`
		} `xml:"dateType"`
	} `xml:"CI_Date"`
}

type xmlResponsibleParty struct {
	Party struct {
		OrganisationName charString `xml:"organisationName"`
		ContactInfo      struct {
			Contact struct {
				Address struct {
					Addr struct {
						Email []charString `xml:"electronicMailAddress"`
					} `xml:"CI_Address"`
				} `xml:"address"`
			} `xml:"CI_Contact"`
		} `xml:"contactInfo"`
		Role struct {
			Code codeValue `xml:"CI_RoleCode"`
		} `xml:"role"`
	} `xml:"CI_ResponsibleParty"`
}

type xmlKeywords struct {
	Block struct {
		Keyword []charString `xml:"keyword"`
	} `xml:"MD_Keywords"`
}

type xmlConstraints struct {
	Legal struct {
		UseLimitation    []charString `xml:"useLimitation"`
		OtherConstraints []charString `xml:"otherConstraints"`
	} `xml:"MD_LegalConstraints"`
	Generic struct {
		UseLimitation []charString `xml:"useLimitation"`
	} `xml:"MD_Constraints"`
}

type xmlBBox struct {
	West struct {
		Decimal string `xml:"Decimal"`
	} `xml:"westBoundLongitude"`
	East struct {
		Decimal string `xml:"Decimal"`
	} `xml:"eastBoundLongitude"`
	South struct {
		Decimal string `xml:"Decimal"`
	} `xml:"southBoundLatitude"`
	North struct {
		Decimal string `xml:"Decimal"`
	} `xml:"northBoundLatitude"`
}

type xmlExtent struct {
	Block struct {
		Geographic []struct {
			BBox *xmlBBox `xml:"EX_GeographicBoundingBox"`
		} `xml:"geographicElement"`
		Temporal []struct {
			Period struct {
				Begin string `xml:"beginPosition"`
				End   string `xml:"endPosition"`
			} `xml:"EX_TemporalExtent>extent>TimePeriod"`
		} `xml:"temporalElement"`
	} `xml:"EX_Extent"`
}

type xmlOnlineResource struct {
	Resource struct {
		Linkage struct {
			URL string `xml:"URL"`
		} `xml:"linkage"`
		Name        charString `xml:"name"`
		Description charString `xml:"description"`
		Protocol    charString `xml:"protocol"`
		Function    struct {
			Code codeValue `xml:"CI_OnLineFunctionCode"`
		} `xml:"function"`
	} `xml:"CI_OnlineResource"`
}

func (o xmlOnlineResource) locator() ResourceLocator {
	return ResourceLocator{
		URL:         strings.TrimSpace(o.Resource.Linkage.URL),
		Name:        o.Resource.Name.text(),
		Description: o.Resource.Description.text(),
		Protocol:    o.Resource.Protocol.text(),
		Function:    o.Resource.Function.Code.text(),
	}
}

type xmlBrowseGraphic struct {
	Graphic struct {
		FileName        charString `xml:"fileName"`
		FileDescription charString `xml:"fileDescription"`
		FileType        charString `xml:"fileType"`
	} `xml:"MD_BrowseGraphic"`
}

type xmlIdentification struct {
	Citation struct {
		Citation struct {
			Title charString  `xml:"title"`
			Dates []xmlCIDate `xml:"date"`
		} `xml:"CI_Citation"`
	} `xml:"citation"`
	Abstract            charString            `xml:"abstract"`
	Purpose             charString            `xml:"purpose"`
	PointOfContact      []xmlResponsibleParty `xml:"pointOfContact"`
	MaintenanceInfo     struct {
		Maintenance struct {
			Frequency struct {
				Code codeValue `xml:"MD_MaintenanceFrequencyCode"`
			} `xml:"maintenanceAndUpdateFrequency"`
		} `xml:"MD_MaintenanceInformation"`
	} `xml:"resourceMaintenance"`
	GraphicOverview     []xmlBrowseGraphic `xml:"graphicOverview"`
	DescriptiveKeywords []xmlKeywords      `xml:"descriptiveKeywords"`
	ResourceConstraints []xmlConstraints   `xml:"resourceConstraints"`
	TopicCategory       []string           `xml:"topicCategory>MD_TopicCategoryCode"`
	Status              []struct {
		Code codeValue `xml:"MD_ProgressCode"`
	} `xml:"status"`
	Extent        []xmlExtent `xml:"extent"`
	ServiceExtent []xmlExtent `xml:"serviceExtent"`
	ServiceType   struct {
		LocalName string `xml:"LocalName"`
	} `xml:"serviceType"`
	OperatesOn []struct {
		UUIDRef string `xml:"uuidref,attr"`
		Href    string `xml:"href,attr"`
	} `xml:"operatesOn"`
	ContainsOperations []struct {
		Operation struct {
			ConnectPoint []xmlOnlineResource `xml:"connectPoint"`
		} `xml:"SV_OperationMetadata"`
	} `xml:"containsOperations"`
}

type xmlDocument struct {
	XMLName           xml.Name
	FileIdentifier    charString `xml:"fileIdentifier"`
	Language          struct {
		Code  codeValue `xml:"LanguageCode"`
		Value string    `xml:",chardata"`
	} `xml:"language"`
	HierarchyLevel []struct {
		Code codeValue `xml:"MD_ScopeCode"`
	} `xml:"hierarchyLevel"`
	Contact                 []xmlResponsibleParty `xml:"contact"`
	DateStamp               dateOrDateTime        `xml:"dateStamp"`
	MetadataStandardName    charString            `xml:"metadataStandardName"`
	MetadataStandardVersion charString            `xml:"metadataStandardVersion"`
	ReferenceSystemInfo     []struct {
		System struct {
			Identifier struct {
				RS struct {
					Code      charString `xml:"code"`
					CodeSpace charString `xml:"codeSpace"`
					Version   charString `xml:"version"`
				} `xml:"RS_Identifier"`
				MD struct {
					Code charString `xml:"code"`
				} `xml:"MD_Identifier"`
			} `xml:"referenceSystemIdentifier"`
		} `xml:"MD_ReferenceSystem"`
	} `xml:"referenceSystemInfo"`
	IdentificationInfo []struct {
		Data    *xmlIdentification `xml:"MD_DataIdentification"`
		Service *xmlIdentification `xml:"SV_ServiceIdentification"`
	} `xml:"identificationInfo"`
	DistributionInfo struct {
		Distribution struct {
			TransferOptions []struct {
				Options struct {
					OnLine []xmlOnlineResource `xml:"onLine"`
				} `xml:"MD_DigitalTransferOptions"`
			} `xml:"transferOptions"`
		} `xml:"MD_Distribution"`
	} `xml:"distributionInfo"`
	DataQualityInfo []struct {
		Quality struct {
			Lineage struct {
				Lineage struct {
					Statement charString `xml:"statement"`
					Source    []struct {
						Source struct {
							Description charString `xml:"description"`
						} `xml:"LI_Source"`
					} `xml:"source"`
				} `xml:"LI_Lineage"`
			} `xml:"lineage"`
		} `xml:"DQ_DataQuality"`
	} `xml:"dataQualityInfo"`
}

// Parse extracts the normalized field map from an ISO-19139 document.
// The document must have MD_Metadata (or a profile subtype of it) as
// its root element.
func Parse(content []byte) (*Values, error) {
	var doc xmlDocument
	dec := xml.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "parsing metadata document")
	}

	v := &Values{
		GUID:                    doc.FileIdentifier.text(),
		DateStamp:               doc.DateStamp.text(),
		MetadataDate:            doc.DateStamp.text(),
		MetadataStandardName:    doc.MetadataStandardName.text(),
		MetadataStandardVersion: doc.MetadataStandardVersion.text(),
	}

	if s := doc.Language.Code.text(); s != "" {
		v.MetadataLanguage = s
	} else {
		v.MetadataLanguage = strings.TrimSpace(doc.Language.Value)
	}

	for _, h := range doc.HierarchyLevel {
		if s := h.Code.text(); s != "" {
			v.ResourceType = append(v.ResourceType, s)
		}
	}

	for _, c := range doc.Contact {
		for _, e := range c.Party.ContactInfo.Contact.Address.Addr.Email {
			if s := e.text(); s != "" && v.ContactEmail == "" {
				v.ContactEmail = s
			}
		}
	}

	for _, rs := range doc.ReferenceSystemInfo {
		id := rs.System.Identifier
		code := id.RS.Code.text()
		if code == "" {
			code = id.MD.Code.text()
		}
		if code != "" && v.SpatialReferenceSystem == "" {
			v.SpatialReferenceSystem = code
		}
	}

	for _, info := range doc.IdentificationInfo {
		if info.Data != nil {
			v.mergeIdentification(info.Data, false)
		}
		if info.Service != nil {
			v.mergeIdentification(info.Service, true)
		}
	}

	for _, t := range doc.DistributionInfo.Distribution.TransferOptions {
		for _, o := range t.Options.OnLine {
			loc := o.locator()
			if loc.URL != "" {
				v.ResourceLocators = append(v.ResourceLocators, loc)
			}
		}
	}

	for _, dq := range doc.DataQualityInfo {
		if s := dq.Quality.Lineage.Lineage.Statement.text(); s != "" && v.Lineage == "" {
			v.Lineage = s
		}
		for _, src := range dq.Quality.Lineage.Lineage.Source {
			if s := src.Source.Description.text(); s != "" && v.Source == "" {
				v.Source = s
			}
		}
	}

	return v, nil
}

func (v *Values) mergeIdentification(id *xmlIdentification, service bool) {
	if v.Title == "" {
		v.Title = id.Citation.Citation.Title.text()
	}
	if v.Abstract == "" {
		v.Abstract = id.Abstract.text()
	}
	if v.Purpose == "" {
		v.Purpose = id.Purpose.text()
	}
	if v.FrequencyOfUpdate == "" {
		v.FrequencyOfUpdate = id.MaintenanceInfo.Maintenance.Frequency.Code.text()
	}

	for _, d := range id.Citation.Citation.Dates {
		rd := ReferenceDate{
			Type:  d.Date.DateType.Code.text(),
			Value: d.Date.Date.text(),
		}
		if rd.Value == "" {
			continue
		}
		v.DatasetReferenceDates = append(v.DatasetReferenceDates, rd)
		if rd.Type == "revision" && v.DateUpdated == "" {
			v.DateUpdated = rd.Value
		}
	}

	for _, p := range id.PointOfContact {
		org := p.Party.OrganisationName.text()
		if org == "" {
			continue
		}
		v.ResponsibleOrganisations = append(v.ResponsibleOrganisations, ResponsibleParty{
			OrganisationName: org,
			Role:             p.Party.Role.Code.text(),
		})
	}

	for _, kw := range id.DescriptiveKeywords {
		for _, k := range kw.Block.Keyword {
			if s := k.text(); s != "" {
				v.Tags = append(v.Tags, s)
			}
		}
	}

	for _, tc := range id.TopicCategory {
		if s := strings.TrimSpace(tc); s != "" {
			v.TopicCategories = append(v.TopicCategories, s)
		}
	}

	for _, st := range id.Status {
		if s := st.Code.text(); s != "" {
			v.Progress = append(v.Progress, s)
		}
	}

	for _, c := range id.ResourceConstraints {
		for _, u := range c.Legal.UseLimitation {
			if s := u.text(); s != "" {
				v.UseConstraints = append(v.UseConstraints, s)
			}
			if a := strings.TrimSpace(u.Anchor); strings.Contains(a, "creativecommons") {
				v.CreativeCommons = append(v.CreativeCommons, a)
			}
		}
		for _, u := range c.Generic.UseLimitation {
			if s := u.text(); s != "" {
				v.UseConstraints = append(v.UseConstraints, s)
			}
		}
		for _, o := range c.Legal.OtherConstraints {
			if s := o.text(); s != "" {
				v.AccessConstraints = append(v.AccessConstraints, s)
			}
			if a := strings.TrimSpace(o.Anchor); strings.Contains(a, "creativecommons") {
				v.CreativeCommons = append(v.CreativeCommons, a)
			}
		}
	}

	for _, g := range id.GraphicOverview {
		bg := BrowseGraphic{
			File:        g.Graphic.FileName.text(),
			Description: g.Graphic.FileDescription.text(),
			Type:        g.Graphic.FileType.text(),
		}
		if bg.File != "" {
			v.BrowseGraphics = append(v.BrowseGraphics, bg)
		}
	}

	extents := append(append([]xmlExtent{}, id.Extent...), id.ServiceExtent...)
	for _, e := range extents {
		for _, g := range e.Block.Geographic {
			if g.BBox == nil {
				continue
			}
			v.BBoxes = append(v.BBoxes, BoundingBox{
				West:  strings.TrimSpace(g.BBox.West.Decimal),
				East:  strings.TrimSpace(g.BBox.East.Decimal),
				South: strings.TrimSpace(g.BBox.South.Decimal),
				North: strings.TrimSpace(g.BBox.North.Decimal),
			})
		}
		for _, t := range e.Block.Temporal {
			p := t.Period
			if b := strings.TrimSpace(p.Begin); b != "" {
				v.TemporalExtentBegin = append(v.TemporalExtentBegin, b)
			}
			if en := strings.TrimSpace(p.End); en != "" {
				v.TemporalExtentEnd = append(v.TemporalExtentEnd, en)
			}
		}
	}

	if service {
		if v.SpatialDataServiceType == "" {
			v.SpatialDataServiceType = strings.TrimSpace(id.ServiceType.LocalName)
		}
		for _, op := range id.OperatesOn {
			ref := strings.TrimSpace(op.UUIDRef)
			if ref == "" {
				ref = strings.TrimSpace(op.Href)
			}
			if ref != "" {
				v.CoupledResource = append(v.CoupledResource, ref)
			}
		}
		for _, co := range id.ContainsOperations {
			for _, cp := range co.Operation.ConnectPoint {
				loc := cp.locator()
				if loc.URL != "" {
					v.ResourceLocatorIdentifications = append(v.ResourceLocatorIdentifications, loc)
				}
			}
		}
	}
}
