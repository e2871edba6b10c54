package iso

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `<?xml version="1.0" encoding="UTF-8"?>
<gmd:MD_Metadata xmlns:gmd="http://www.isotc211.org/2005/gmd"
                 xmlns:gco="http://www.isotc211.org/2005/gco"
                 xmlns:gml="http://www.opengis.net/gml"
                 xmlns:gmx="http://www.isotc211.org/2005/gmx"
                 xmlns:xlink="http://www.w3.org/1999/xlink">
  <gmd:fileIdentifier>
    <gco:CharacterString>1a2b3c4d-5e6f</gco:CharacterString>
  </gmd:fileIdentifier>
  <gmd:language>
    <gmd:LanguageCode codeListValue="eng">English</gmd:LanguageCode>
  </gmd:language>
  <gmd:hierarchyLevel>
    <gmd:MD_ScopeCode codeListValue="dataset">dataset</gmd:MD_ScopeCode>
  </gmd:hierarchyLevel>
  <gmd:contact>
    <gmd:CI_ResponsibleParty>
      <gmd:organisationName><gco:CharacterString>Marine Institute</gco:CharacterString></gmd:organisationName>
      <gmd:contactInfo>
        <gmd:CI_Contact>
          <gmd:address>
            <gmd:CI_Address>
              <gmd:electronicMailAddress><gco:CharacterString>data@example.org</gco:CharacterString></gmd:electronicMailAddress>
            </gmd:CI_Address>
          </gmd:address>
        </gmd:CI_Contact>
      </gmd:contactInfo>
      <gmd:role><gmd:CI_RoleCode codeListValue="pointOfContact"/></gmd:role>
    </gmd:CI_ResponsibleParty>
  </gmd:contact>
  <gmd:dateStamp>
    <gco:Date>2024-03-15</gco:Date>
  </gmd:dateStamp>
  <gmd:metadataStandardName><gco:CharacterString>ISO 19115:2003/19139</gco:CharacterString></gmd:metadataStandardName>
  <gmd:metadataStandardVersion><gco:CharacterString>1.0</gco:CharacterString></gmd:metadataStandardVersion>
  <gmd:referenceSystemInfo>
    <gmd:MD_ReferenceSystem>
      <gmd:referenceSystemIdentifier>
        <gmd:RS_Identifier>
          <gmd:code><gco:CharacterString>EPSG:4326</gco:CharacterString></gmd:code>
        </gmd:RS_Identifier>
      </gmd:referenceSystemIdentifier>
    </gmd:MD_ReferenceSystem>
  </gmd:referenceSystemInfo>
  <gmd:identificationInfo>
    <gmd:MD_DataIdentification>
      <gmd:citation>
        <gmd:CI_Citation>
          <gmd:title><gco:CharacterString>Coastal Bathymetry Survey</gco:CharacterString></gmd:title>
          <gmd:date>
            <gmd:CI_Date>
              <gmd:date><gco:Date>2023-11-01</gco:Date></gmd:date>
              <gmd:dateType><gmd:CI_DateTypeCode codeListValue="creation"/></gmd:dateType>
            </gmd:CI_Date>
          </gmd:date>
          <gmd:date>
            <gmd:CI_Date>
              <gmd:date><gco:Date>2024-02-20</gco:Date></gmd:date>
              <gmd:dateType><gmd:CI_DateTypeCode codeListValue="revision"/></gmd:dateType>
            </gmd:CI_Date>
          </gmd:date>
        </gmd:CI_Citation>
      </gmd:citation>
      <gmd:abstract><gco:CharacterString>High resolution bathymetry of the coastal zone.</gco:CharacterString></gmd:abstract>
      <gmd:purpose><gco:CharacterString>Navigation safety.</gco:CharacterString></gmd:purpose>
      <gmd:pointOfContact>
        <gmd:CI_ResponsibleParty>
          <gmd:organisationName><gco:CharacterString>Marine Institute</gco:CharacterString></gmd:organisationName>
          <gmd:role><gmd:CI_RoleCode codeListValue="custodian"/></gmd:role>
        </gmd:CI_ResponsibleParty>
      </gmd:pointOfContact>
      <gmd:resourceMaintenance>
        <gmd:MD_MaintenanceInformation>
          <gmd:maintenanceAndUpdateFrequency>
            <gmd:MD_MaintenanceFrequencyCode codeListValue="annually"/>
          </gmd:maintenanceAndUpdateFrequency>
        </gmd:MD_MaintenanceInformation>
      </gmd:resourceMaintenance>
      <gmd:graphicOverview>
        <gmd:MD_BrowseGraphic>
          <gmd:fileName><gco:CharacterString>https://example.org/preview.png</gco:CharacterString></gmd:fileName>
          <gmd:fileDescription><gco:CharacterString>Overview map</gco:CharacterString></gmd:fileDescription>
        </gmd:MD_BrowseGraphic>
      </gmd:graphicOverview>
      <gmd:descriptiveKeywords>
        <gmd:MD_Keywords>
          <gmd:keyword><gco:CharacterString>bathymetry - depth</gco:CharacterString></gmd:keyword>
          <gmd:keyword><gco:CharacterString>coastal</gco:CharacterString></gmd:keyword>
        </gmd:MD_Keywords>
      </gmd:descriptiveKeywords>
      <gmd:resourceConstraints>
        <gmd:MD_LegalConstraints>
          <gmd:useLimitation><gco:CharacterString>Creative Commons Attribution</gco:CharacterString></gmd:useLimitation>
          <gmd:otherConstraints><gco:CharacterString>No restrictions on public access</gco:CharacterString></gmd:otherConstraints>
        </gmd:MD_LegalConstraints>
      </gmd:resourceConstraints>
      <gmd:topicCategory><gmd:MD_TopicCategoryCode>oceans</gmd:MD_TopicCategoryCode></gmd:topicCategory>
      <gmd:status><gmd:MD_ProgressCode codeListValue="completed"/></gmd:status>
      <gmd:extent>
        <gmd:EX_Extent>
          <gmd:geographicElement>
            <gmd:EX_GeographicBoundingBox>
              <gmd:westBoundLongitude><gco:Decimal>140.5</gco:Decimal></gmd:westBoundLongitude>
              <gmd:eastBoundLongitude><gco:Decimal>150.0</gco:Decimal></gmd:eastBoundLongitude>
              <gmd:southBoundLatitude><gco:Decimal>-39.2</gco:Decimal></gmd:southBoundLatitude>
              <gmd:northBoundLatitude><gco:Decimal>-33.0</gco:Decimal></gmd:northBoundLatitude>
            </gmd:EX_GeographicBoundingBox>
          </gmd:geographicElement>
          <gmd:temporalElement>
            <gmd:EX_TemporalExtent>
              <gmd:extent>
                <gml:TimePeriod>
                  <gml:beginPosition>2020-01-01</gml:beginPosition>
                  <gml:endPosition>2023-12-31</gml:endPosition>
                </gml:TimePeriod>
              </gmd:extent>
            </gmd:EX_TemporalExtent>
          </gmd:temporalElement>
        </gmd:EX_Extent>
      </gmd:extent>
    </gmd:MD_DataIdentification>
  </gmd:identificationInfo>
  <gmd:distributionInfo>
    <gmd:MD_Distribution>
      <gmd:transferOptions>
        <gmd:MD_DigitalTransferOptions>
          <gmd:onLine>
            <gmd:CI_OnlineResource>
              <gmd:linkage><gmd:URL>https://example.org/data/bathymetry.csv</gmd:URL></gmd:linkage>
              <gmd:name><gco:CharacterString>CSV download</gco:CharacterString></gmd:name>
              <gmd:description><gco:CharacterString>Soundings as csv table</gco:CharacterString></gmd:description>
              <gmd:protocol><gco:CharacterString>WWW:DOWNLOAD-1.0-http--download</gco:CharacterString></gmd:protocol>
            </gmd:CI_OnlineResource>
          </gmd:onLine>
        </gmd:MD_DigitalTransferOptions>
      </gmd:transferOptions>
    </gmd:MD_Distribution>
  </gmd:distributionInfo>
  <gmd:dataQualityInfo>
    <gmd:DQ_DataQuality>
      <gmd:lineage>
        <gmd:LI_Lineage>
          <gmd:statement><gco:CharacterString>Multibeam survey, 2020-2023.</gco:CharacterString></gmd:statement>
          <gmd:source>
            <gmd:LI_Source>
              <gmd:description><gco:CharacterString>https://example.org/surveys/2023</gco:CharacterString></gmd:description>
            </gmd:LI_Source>
          </gmd:source>
        </gmd:LI_Lineage>
      </gmd:lineage>
    </gmd:DQ_DataQuality>
  </gmd:dataQualityInfo>
</gmd:MD_Metadata>`

func TestParse(t *testing.T) {
	values, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, "1a2b3c4d-5e6f", values.GUID)
	assert.Equal(t, "Coastal Bathymetry Survey", values.Title)
	assert.Equal(t, "High resolution bathymetry of the coastal zone.", values.Abstract)
	assert.Equal(t, "Navigation safety.", values.Purpose)
	assert.Equal(t, "Multibeam survey, 2020-2023.", values.Lineage)
	assert.Equal(t, "https://example.org/surveys/2023", values.Source)
	assert.Equal(t, "eng", values.MetadataLanguage)
	assert.Equal(t, "2024-03-15", values.MetadataDate)
	assert.Equal(t, "ISO 19115:2003/19139", values.MetadataStandardName)
	assert.Equal(t, "1.0", values.MetadataStandardVersion)
	assert.Equal(t, "EPSG:4326", values.SpatialReferenceSystem)
	assert.Equal(t, "data@example.org", values.ContactEmail)
	assert.Equal(t, "annually", values.FrequencyOfUpdate)
	assert.Equal(t, []string{"dataset"}, values.ResourceType)
	assert.Equal(t, []string{"completed"}, values.Progress)

	assert.Equal(t, []string{"bathymetry - depth", "coastal"}, values.Tags)
	assert.Equal(t, []string{"oceans"}, values.TopicCategories)

	require.Len(t, values.DatasetReferenceDates, 2)
	assert.Equal(t, ReferenceDate{Type: "creation", Value: "2023-11-01"}, values.DatasetReferenceDates[0])
	assert.Equal(t, "2024-02-20", values.DateUpdated)

	require.Len(t, values.ResponsibleOrganisations, 1)
	assert.Equal(t, "Marine Institute", values.ResponsibleOrganisations[0].OrganisationName)
	assert.Equal(t, "custodian", values.ResponsibleOrganisations[0].Role)

	assert.Equal(t, []string{"Creative Commons Attribution"}, values.UseConstraints)
	assert.Equal(t, []string{"No restrictions on public access"}, values.AccessConstraints)

	require.Len(t, values.BrowseGraphics, 1)
	assert.Equal(t, "https://example.org/preview.png", values.BrowseGraphics[0].File)
	assert.Equal(t, "Overview map", values.BrowseGraphics[0].Description)

	require.Len(t, values.BBoxes, 1)
	assert.Equal(t, BoundingBox{West: "140.5", East: "150.0", South: "-39.2", North: "-33.0"}, values.BBoxes[0])
	assert.Equal(t, []string{"2020-01-01"}, values.TemporalExtentBegin)
	assert.Equal(t, []string{"2023-12-31"}, values.TemporalExtentEnd)

	require.Len(t, values.ResourceLocators, 1)
	loc := values.ResourceLocators[0]
	assert.Equal(t, "https://example.org/data/bathymetry.csv", loc.URL)
	assert.Equal(t, "CSV download", loc.Name)
	assert.Equal(t, "Soundings as csv table", loc.Description)
	assert.Equal(t, "WWW:DOWNLOAD-1.0-http--download", loc.Protocol)
}

func TestParseServiceIdentification(t *testing.T) {
	doc := `<gmd:MD_Metadata xmlns:gmd="http://www.isotc211.org/2005/gmd"
	    xmlns:gco="http://www.isotc211.org/2005/gco"
	    xmlns:srv="http://www.isotc211.org/2005/srv"
	    xmlns:xlink="http://www.w3.org/1999/xlink">
	  <gmd:fileIdentifier><gco:CharacterString>svc-1</gco:CharacterString></gmd:fileIdentifier>
	  <gmd:identificationInfo>
	    <srv:SV_ServiceIdentification>
	      <gmd:citation><gmd:CI_Citation>
	        <gmd:title><gco:CharacterString>Web Map Service</gco:CharacterString></gmd:title>
	      </gmd:CI_Citation></gmd:citation>
	      <gmd:abstract><gco:CharacterString>View service.</gco:CharacterString></gmd:abstract>
	      <srv:serviceType><gco:LocalName>view</gco:LocalName></srv:serviceType>
	      <srv:operatesOn xlink:href="https://example.org/md/abc" uuidref="abc"/>
	      <srv:containsOperations>
	        <srv:SV_OperationMetadata>
	          <srv:connectPoint>
	            <gmd:CI_OnlineResource>
	              <gmd:linkage><gmd:URL>https://example.org/geoserver/wms</gmd:URL></gmd:linkage>
	            </gmd:CI_OnlineResource>
	          </srv:connectPoint>
	        </srv:SV_OperationMetadata>
	      </srv:containsOperations>
	    </srv:SV_ServiceIdentification>
	  </gmd:identificationInfo>
	</gmd:MD_Metadata>`

	values, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Web Map Service", values.Title)
	assert.Equal(t, "view", values.SpatialDataServiceType)
	assert.Equal(t, []string{"abc"}, values.CoupledResource)
	require.Len(t, values.ResourceLocatorIdentifications, 1)
	assert.Equal(t, "https://example.org/geoserver/wms", values.ResourceLocatorIdentifications[0].URL)
}

func TestParseRejectsMalformedXML(t *testing.T) {
	_, err := Parse([]byte("<gmd:MD_Metadata><unclosed>"))
	assert.Error(t, err)
}

func TestGuessStandard(t *testing.T) {
	assert.Equal(t, StandardISO, GuessStandard([]byte(sampleDocument)))
	assert.Equal(t, StandardFGDC, GuessStandard([]byte("<metadata><idinfo/></metadata>")))
	assert.Equal(t, StandardUnknown, GuessStandard([]byte("<unrelated/>")))
}
